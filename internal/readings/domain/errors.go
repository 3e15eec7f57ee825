package readings

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateReading is returned when a manual reading repeats an
	// existing manual reading for the same nozzle and timestamp.
	ErrDuplicateReading = errors.New("readings: duplicate reading")
	// ErrReadingNotFound is returned when a reading does not exist.
	ErrReadingNotFound = errors.New("readings: not found")
	// ErrAuditWindowClosed is returned when a deletion is attempted after
	// the audit window has elapsed.
	ErrAuditWindowClosed = errors.New("readings: audit window closed")
	// ErrNotOwner is returned when a deletion is attempted by someone other
	// than the operator who entered the reading.
	ErrNotOwner = errors.New("readings: not entered by caller")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("readings: invalid %s: %s", e.Field, e.Reason)
}
