package readings

import (
	"strings"
	"time"
)

// NozzleReading is a raw cumulative-volume meter reading for one nozzle.
// Readings are append-only: corrections supersede, they never edit in place.
type NozzleReading struct {
	ID               string
	StationID        string
	PumpID           string
	NozzleID         string
	FuelType         string
	CumulativeVolume float64
	RecordedAt       time.Time
	ManualEntry      bool
	SourceConfidence float64
	EnteredBy        string
	SupersedesID     string
	CreatedAt        time.Time
}

// NozzleKey identifies one physical nozzle.
type NozzleKey struct {
	PumpID   string
	NozzleID string
}

// Key returns the nozzle identity of the reading.
func (r NozzleReading) Key() NozzleKey {
	return NozzleKey{PumpID: r.PumpID, NozzleID: r.NozzleID}
}

// Validate checks required fields.
func (r NozzleReading) Validate() error {
	switch {
	case strings.TrimSpace(r.StationID) == "":
		return &ValidationError{Field: "station_id", Reason: "required"}
	case strings.TrimSpace(r.PumpID) == "":
		return &ValidationError{Field: "pump_id", Reason: "required"}
	case strings.TrimSpace(r.NozzleID) == "":
		return &ValidationError{Field: "nozzle_id", Reason: "required"}
	case strings.TrimSpace(r.FuelType) == "":
		return &ValidationError{Field: "fuel_type", Reason: "required"}
	case r.CumulativeVolume < 0:
		return &ValidationError{Field: "cumulative_volume", Reason: "must be >= 0"}
	case r.RecordedAt.IsZero():
		return &ValidationError{Field: "recorded_at", Reason: "required"}
	}
	return nil
}
