package credit

import (
	"errors"
	"fmt"
)

var (
	// ErrOverAllocation is returned when allocations would exceed a credit
	// entry's original amount.
	ErrOverAllocation = errors.New("credit: over-allocation")
	// ErrCreditNotFound is returned when a referenced credit entry does not
	// exist for the creditor/station.
	ErrCreditNotFound = errors.New("credit: transaction not found")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("credit: invalid %s: %s", e.Field, e.Reason)
}
