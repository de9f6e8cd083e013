package tonconnect

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one server-sent event of the bridge stream
type sseEvent struct {
	ID    string
	Event string
	Data  string
}

// readEvents parses a text/event-stream body and calls fn for each complete
// event. It returns when r is exhausted, fails, or fn returns an error.
func readEvents(r io.Reader, fn func(sseEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ev sseEvent
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if len(data) > 0 || ev.Event != "" {
				ev.Data = strings.Join(data, "\n")
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev, data = sseEvent{}, nil
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			ev.ID = value
		case "event":
			ev.Event = value
		case "data":
			data = append(data, value)
		}
	}
	return scanner.Err()
}
