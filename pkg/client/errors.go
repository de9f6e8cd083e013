package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited marks an HTTP 429 answer
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrNetwork wraps transport level failures
	ErrNetwork = errors.New("network error")
)

// APIError is a non-2xx answer from an upstream API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("request failed: %s", e.Status)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 answers.
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// ParseError is returned when a response body does not have the expected shape.
type ParseError struct {
	Endpoint string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Retryable reports whether a failed call may succeed when repeated. Rate
// limits, HTTP failures and network errors are retryable, malformed payloads
// are not.
func Retryable(err error) bool {
	var perr *ParseError
	return !errors.As(err, &perr)
}
