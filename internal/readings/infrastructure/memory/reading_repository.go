package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	readings "fuelsync/internal/readings/domain"
)

// ReadingRepository is an in-memory reading store for tests.
type ReadingRepository struct {
	mu         sync.RWMutex
	data       []readings.NozzleReading
	superseded map[string]struct{}
}

// NewReadingRepository constructs a repository.
func NewReadingRepository() *ReadingRepository {
	return &ReadingRepository{superseded: make(map[string]struct{})}
}

// Insert stores a reading, rejecting manual duplicates.
func (r *ReadingRepository) Insert(ctx context.Context, reading *readings.NozzleReading) error {
	_ = ctx
	if err := reading.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if reading.ManualEntry && reading.SupersedesID == "" {
		for _, existing := range r.data {
			if existing.ManualEntry && existing.SupersedesID == "" &&
				existing.StationID == reading.StationID &&
				existing.Key() == reading.Key() &&
				existing.RecordedAt.Equal(reading.RecordedAt) {
				return readings.ErrDuplicateReading
			}
		}
	}
	if reading.SupersedesID != "" {
		r.superseded[reading.SupersedesID] = struct{}{}
	}
	r.data = append(r.data, *reading)
	return nil
}

// Get loads a reading by id.
func (r *ReadingRepository) Get(ctx context.Context, id string) (*readings.NozzleReading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.data {
		if r.data[i].ID == id {
			copy := r.data[i]
			return &copy, nil
		}
	}
	return nil, readings.ErrReadingNotFound
}

// LatestBefore returns the newest non-superseded reading before an instant.
// Timestamp ties resolve manual-last to match derivation order.
func (r *ReadingRepository) LatestBefore(ctx context.Context, stationID string, key readings.NozzleKey, before time.Time) (*readings.NozzleReading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *readings.NozzleReading
	for i := range r.data {
		candidate := r.data[i]
		if candidate.StationID != stationID || candidate.Key() != key {
			continue
		}
		if _, gone := r.superseded[candidate.ID]; gone {
			continue
		}
		if !candidate.RecordedAt.Before(before) {
			continue
		}
		if best == nil || laterInDerivationOrder(candidate, *best) {
			copy := candidate
			best = &copy
		}
	}
	return best, nil
}

// ListByNozzle returns non-superseded readings in [from, to) sorted by
// recorded_at, automatic entries before manual on ties, then insertion order.
func (r *ReadingRepository) ListByNozzle(ctx context.Context, stationID string, key readings.NozzleKey, from, to time.Time) ([]readings.NozzleReading, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []readings.NozzleReading
	for _, candidate := range r.data {
		if candidate.StationID != stationID || candidate.Key() != key {
			continue
		}
		if _, gone := r.superseded[candidate.ID]; gone {
			continue
		}
		if candidate.RecordedAt.Before(from) || !candidate.RecordedAt.Before(to) {
			continue
		}
		out = append(out, candidate)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return !out[i].ManualEntry && out[j].ManualEntry
	})
	return out, nil
}

// laterInDerivationOrder reports whether a sorts after b in derivation
// order: recorded_at, automatic before manual on ties, then insertion order.
func laterInDerivationOrder(a, b readings.NozzleReading) bool {
	if !a.RecordedAt.Equal(b.RecordedAt) {
		return a.RecordedAt.After(b.RecordedAt)
	}
	if a.ManualEntry != b.ManualEntry {
		return a.ManualEntry
	}
	return true
}

// Delete removes a reading by id.
func (r *ReadingRepository) Delete(ctx context.Context, id string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.data {
		if r.data[i].ID == id {
			r.data = append(r.data[:i], r.data[i+1:]...)
			return nil
		}
	}
	return readings.ErrReadingNotFound
}
