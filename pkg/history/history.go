package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"ton-swap/pkg/types"
)

const (
	DefaultFileName = ".ton-swap-history.json"
)

// ErrNotFound is returned by Get for an unknown id
var ErrNotFound = errors.New("swap not found")

// Status of a recorded swap
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Record is one swap attempt
type Record struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	Dest          string    `json:"dest"`
	SourceAmount  string    `json:"source_amount"`
	MinDestAmount string    `json:"min_dest_amount"`
	Status        Status    `json:"status"`
	Result        string    `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// fileFormat represents the JSON structure on disk
type fileFormat struct {
	Swaps []*Record `json:"swaps"`
}

// Store is a JSON file journal of swap attempts
type Store struct {
	filePath string
	mu       sync.RWMutex
	records  []*Record
	now      func() time.Time
}

// DefaultPath returns the journal location in the user's home directory
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultFileName), nil
}

// NewStore opens the journal at filePath, creating it on first write.
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		return nil, fmt.Errorf("history file path is empty")
	}

	s := &Store{
		filePath: filePath,
		now:      time.Now,
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return pkgerrors.Wrap(err, "failed to unmarshal history")
	}
	s.records = f.Swaps
	return nil
}

// save writes the journal, caller must hold the lock
func (s *Store) save() error {
	data, err := json.MarshalIndent(fileFormat{Swaps: s.records}, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal history")
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return pkgerrors.Wrap(err, "failed to create directory")
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return pkgerrors.Wrap(err, "failed to write history")
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return pkgerrors.Wrap(err, "failed to rename temp file")
	}
	return nil
}

// Record appends the outcome of a swap attempt. A nil swapErr marks the swap
// as submitted with result as the wallet's answer.
func (s *Store) Record(intent types.SwapIntent, result string, swapErr error) (Record, error) {
	rec := &Record{
		ID:            uuid.New().String(),
		Timestamp:     s.now(),
		Source:        intent.Source.Symbol(),
		Dest:          intent.Dest.Symbol(),
		SourceAmount:  intent.SourceAmount,
		MinDestAmount: intent.MinDestAmount,
		Status:        StatusSubmitted,
		Result:        result,
	}
	if swapErr != nil {
		rec.Status = StatusFailed
		rec.Error = swapErr.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	if err := s.save(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return Record{}, err
	}
	return *rec, nil
}

// Get retrieves a record by id or by a unique id prefix.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var match *Record
	for _, r := range s.records {
		if r.ID == id {
			return *r, nil
		}
		if id != "" && strings.HasPrefix(r.ID, id) {
			if match != nil {
				return Record{}, fmt.Errorf("swap id prefix '%s' is ambiguous", id)
			}
			match = r
		}
	}
	if match == nil {
		return Record{}, pkgerrors.Wrapf(ErrNotFound, "swap '%s'", id)
	}
	return *match, nil
}

// List returns records newest first
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Count returns the number of recorded swaps
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// FilePath returns the storage file path
func (s *Store) FilePath() string {
	return s.filePath
}
