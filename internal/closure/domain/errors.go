package closure

import (
	"errors"
	"fmt"
)

var (
	// ErrClosureNotFound is returned when a closure does not exist.
	ErrClosureNotFound = errors.New("closure: not found")
	// ErrConflict is returned when a closure already exists in a non-draft
	// status, or when a concurrent writer changed the row since it was read.
	ErrConflict = errors.New("closure: conflict")
	// ErrInvalidTransition is returned for an edge outside the state machine.
	ErrInvalidTransition = errors.New("closure: invalid transition")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("closure: invalid %s: %s", e.Field, e.Reason)
}
