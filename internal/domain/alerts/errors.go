package alerts

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure that aborts a run wraps exactly one of these,
// so callers dispatch with errors.Is.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrAuthentication = errors.New("authentication error")
	ErrUpstream       = errors.New("upstream error")
	ErrFormat         = errors.New("format error")
)

// StatusError is returned when the remote API answers with a non-success
// status code.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
	Kind       error
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v (status %d): %s", e.Op, e.Kind, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return e.Kind }
