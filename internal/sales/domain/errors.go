package sales

import (
	"errors"
	"fmt"

	readings "fuelsync/internal/readings/domain"
)

var (
	// ErrMeterReset marks a pair rejected under the "reject" reset policy.
	ErrMeterReset = errors.New("sales: meter reset detected")
	// ErrUnknownResetPolicy is returned for an unrecognized policy value.
	ErrUnknownResetPolicy = errors.New("sales: unknown reset policy")
)

// NozzleFault is a per-nozzle derivation error. Faults never abort other
// nozzles in the same batch.
type NozzleFault struct {
	StationID string
	Key       readings.NozzleKey
	Err       error
}

func (f NozzleFault) Error() string {
	return fmt.Sprintf("sales: nozzle %s/%s: %v", f.Key.PumpID, f.Key.NozzleID, f.Err)
}

func (f NozzleFault) Unwrap() error { return f.Err }
