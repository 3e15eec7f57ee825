package memory

import (
	"context"
	"sync"
	"time"

	closure "fuelsync/internal/closure/domain"
	sales "fuelsync/internal/sales/domain"
)

// ClosureRepository is an in-memory closure store for tests.
type ClosureRepository struct {
	mu   sync.RWMutex
	data map[string]closure.DailyClosure // keyed by id
}

// NewClosureRepository constructs a repository.
func NewClosureRepository() *ClosureRepository {
	return &ClosureRepository{data: make(map[string]closure.DailyClosure)}
}

// FindByKey returns the live (non-rejected) closure for a station/date/shift,
// or nil. Rejected closures are terminal and do not occupy the key.
func (r *ClosureRepository) FindByKey(ctx context.Context, stationID string, date time.Time, shift sales.Shift) (*closure.DailyClosure, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, record := range r.data {
		if record.Status == closure.StatusRejected {
			continue
		}
		if record.StationID == stationID && sameDate(record.ClosureDate, date) && record.Shift == shift {
			copy := record
			return &copy, nil
		}
	}
	return nil, nil
}

// GetByID loads a closure by id.
func (r *ClosureRepository) GetByID(ctx context.Context, id string) (*closure.DailyClosure, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.data[id]
	if !ok {
		return nil, closure.ErrClosureNotFound
	}
	copy := record
	return &copy, nil
}

// Create inserts a new closure, enforcing key uniqueness among live
// (non-rejected) records, matching the partial unique index in postgres.
func (r *ClosureRepository) Create(ctx context.Context, record *closure.DailyClosure) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.data {
		if existing.Status == closure.StatusRejected {
			continue
		}
		if existing.StationID == record.StationID && sameDate(existing.ClosureDate, record.ClosureDate) && existing.Shift == record.Shift {
			return closure.ErrConflict
		}
	}
	r.data[record.ID] = *record
	return nil
}

// Update persists a closure guarded by version and status.
func (r *ClosureRepository) Update(ctx context.Context, record *closure.DailyClosure, expectVersion int, expectStatus closure.Status) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.data[record.ID]
	if !ok {
		return closure.ErrClosureNotFound
	}
	if existing.Version != expectVersion || existing.Status != expectStatus {
		return closure.ErrConflict
	}
	r.data[record.ID] = *record
	return nil
}

// List returns closures for the given stations and date.
func (r *ClosureRepository) List(ctx context.Context, stationIDs []string, date time.Time) ([]closure.DailyClosure, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []closure.DailyClosure
	for _, record := range r.data {
		if !sameDate(record.ClosureDate, date) {
			continue
		}
		if len(stationIDs) > 0 && !contains(stationIDs, record.StationID) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func sameDate(a, b time.Time) bool {
	y1, m1, d1 := a.UTC().Date()
	y2, m2, d2 := b.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
