package logstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is the non-error sentinel for lookup misses.
var ErrNotFound = errors.New("logstore: record not found")

// UnavailableError reports that the underlying durable storage could not be
// opened, read, or written. Callers decide whether to retry; the store never
// silently drops a write.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("logstore: %s: storage unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}
