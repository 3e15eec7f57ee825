package closure

import (
	"context"
	"time"

	sales "fuelsync/internal/sales/domain"
)

// Repository persists daily closures. At most one row may exist per
// (station, closure date, shift).
type Repository interface {
	// FindByKey returns the closure for a station/date/shift, or nil.
	FindByKey(ctx context.Context, stationID string, date time.Time, shift sales.Shift) (*DailyClosure, error)
	// GetByID loads a closure, or ErrClosureNotFound.
	GetByID(ctx context.Context, id string) (*DailyClosure, error)
	// Create inserts a new closure; a duplicate key yields ErrConflict.
	Create(ctx context.Context, closure *DailyClosure) error
	// Update persists an existing closure guarded by the version and status
	// the caller read. A stale guard yields ErrConflict.
	Update(ctx context.Context, closure *DailyClosure, expectVersion int, expectStatus Status) error
	// List returns closures for the given stations and date.
	List(ctx context.Context, stationIDs []string, date time.Time) ([]DailyClosure, error)
}
