package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports an id absent from the authoritative source.
	ErrNotFound = errors.New("not found")
	// ErrNoUser reports a mutation attempted with no signed-in user.
	ErrNoUser = errors.New("no signed-in user")
)

// PersistenceError wraps a rejected repository call. Local state is left
// untouched and the operation is never retried automatically; the UI surfaces
// the message inline and lets the user re-attempt.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
