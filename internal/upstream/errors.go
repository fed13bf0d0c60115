package upstream

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for 404 responses. Callers treat it as an empty result.
	ErrNotFound = errors.New("upstream: not found")

	// ErrUnavailable is returned once the retry budget for transient failures is spent
	ErrUnavailable = errors.New("upstream: temporarily unavailable")
)

// StatusError is a non-success response that is neither transient nor 404
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status code %d from %s", e.Code, e.URL)
	}
	return fmt.Sprintf("unexpected status code %d from %s: %s", e.Code, e.URL, e.Body)
}

// transientError marks a failure that may succeed on retry
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
