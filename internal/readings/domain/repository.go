package readings

import (
	"context"
	"time"
)

// Repository persists nozzle readings. Inserts are append-only.
type Repository interface {
	// Insert stores a reading. A manual reading colliding with an existing
	// manual reading on (pump, nozzle, recorded_at) yields ErrDuplicateReading.
	Insert(ctx context.Context, reading *NozzleReading) error
	// Get loads a reading by id, or ErrReadingNotFound.
	Get(ctx context.Context, id string) (*NozzleReading, error)
	// LatestBefore returns the newest reading for a nozzle strictly before
	// the given instant, or nil when none exists. Superseded readings are
	// excluded.
	LatestBefore(ctx context.Context, stationID string, key NozzleKey, before time.Time) (*NozzleReading, error)
	// ListByNozzle returns readings for a nozzle within [from, to), ordered
	// by recorded_at then insertion order. Superseded readings are excluded.
	ListByNozzle(ctx context.Context, stationID string, key NozzleKey, from, to time.Time) ([]NozzleReading, error)
	// Delete removes a reading by id, or ErrReadingNotFound.
	Delete(ctx context.Context, id string) error
}
