package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fuelsync/internal/auth"
	"fuelsync/internal/observability/metrics"
	"fuelsync/internal/pricing"
	readings "fuelsync/internal/readings/domain"
	sales "fuelsync/internal/sales/domain"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// Sources for stored readings.
const (
	SourceManual = "manual"
	SourceOCR    = "ocr"
)

// ReadingService stores readings and derives sales from them. Derivation for
// the same nozzle is serialized with a keyed lock; different nozzles proceed
// concurrently.
type ReadingService struct {
	readings    readings.Repository
	sales       sales.Repository
	engine      *sales.Engine
	clock       Clock
	auditWindow time.Duration

	locks nozzleLocks
}

// NewReadingService constructs a service.
func NewReadingService(readingRepo readings.Repository, saleRepo sales.Repository, engine *sales.Engine, auditWindow time.Duration, clock Clock) (*ReadingService, error) {
	if readingRepo == nil {
		return nil, errors.New("reading service: nil reading repo")
	}
	if saleRepo == nil {
		return nil, errors.New("reading service: nil sale repo")
	}
	if engine == nil {
		return nil, errors.New("reading service: nil engine")
	}
	if clock == nil {
		return nil, errors.New("reading service: nil clock")
	}
	if auditWindow <= 0 {
		auditWindow = 24 * time.Hour
	}
	return &ReadingService{
		readings:    readingRepo,
		sales:       saleRepo,
		engine:      engine,
		clock:       clock,
		auditWindow: auditWindow,
	}, nil
}

// RecordReading stores one manual reading and derives the resulting sale.
// A manual duplicate surfaces as readings.ErrDuplicateReading.
func (s *ReadingService) RecordReading(ctx context.Context, actor auth.Actor, reading readings.NozzleReading) (*readings.NozzleReading, sales.Result, error) {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveDerivation(result, s.clock.Now().Sub(start))
	}()

	if err := auth.Scope(actor, reading.StationID, auth.ActionCreateReading); err != nil {
		result = metrics.ResultError
		return nil, sales.Result{}, err
	}
	reading.ManualEntry = true
	reading.EnteredBy = actor.ID
	derived, err := s.store(ctx, &reading, SourceManual)
	if err != nil {
		result = metrics.ResultError
		return nil, sales.Result{}, err
	}
	return &reading, derived, nil
}

// RecordBatch stores OCR reading events and derives sales per nozzle.
// Per-nozzle faults (duplicates, missing prices, rejected resets) are
// reported in the result; they never abort other nozzles.
func (s *ReadingService) RecordBatch(ctx context.Context, batch []readings.NozzleReading) (sales.Result, error) {
	var combined sales.Result
	groups, order := groupBatch(batch)
	for _, key := range order {
		group := groups[key]
		derived, err := s.storeGroup(ctx, group)
		if err != nil {
			return combined, err
		}
		combined.Sales = append(combined.Sales, derived.Sales...)
		combined.Faults = append(combined.Faults, derived.Faults...)
	}
	return combined, nil
}

// store handles a single reading: one-element group.
func (s *ReadingService) store(ctx context.Context, reading *readings.NozzleReading, source string) (sales.Result, error) {
	unlock := s.locks.lock(lockKey(reading.StationID, reading.Key()))
	defer unlock()

	if err := reading.Validate(); err != nil {
		return sales.Result{}, err
	}
	s.fill(reading)

	if err := s.readings.Insert(ctx, reading); err != nil {
		return sales.Result{}, err
	}
	metrics.IncReadingIngested(source)

	// Replay from the inserted instant: a backdated entry changes the
	// baseline of every reading after it, so their sales are re-derived
	// and the idempotent upsert replaces the stale rows.
	return s.rederiveFrom(ctx, reading.StationID, reading.Key(), reading.RecordedAt)
}

// storeGroup handles one nozzle's slice of an OCR batch under the lock.
func (s *ReadingService) storeGroup(ctx context.Context, group []readings.NozzleReading) (sales.Result, error) {
	if len(group) == 0 {
		return sales.Result{}, nil
	}
	first := group[0]
	unlock := s.locks.lock(lockKey(first.StationID, first.Key()))
	defer unlock()

	var stored []readings.NozzleReading
	var faults []sales.NozzleFault
	for i := range group {
		reading := group[i]
		if err := reading.Validate(); err != nil {
			faults = append(faults, sales.NozzleFault{StationID: reading.StationID, Key: reading.Key(), Err: err})
			metrics.IncDerivationFault("validation")
			continue
		}
		s.fill(&reading)
		if err := s.readings.Insert(ctx, &reading); err != nil {
			if errors.Is(err, readings.ErrDuplicateReading) {
				faults = append(faults, sales.NozzleFault{StationID: reading.StationID, Key: reading.Key(), Err: err})
				metrics.IncDerivationFault("duplicate")
				continue
			}
			return sales.Result{}, err
		}
		metrics.IncReadingIngested(SourceOCR)
		stored = append(stored, reading)
	}
	if len(stored) == 0 {
		return sales.Result{Faults: faults}, nil
	}

	// Replay from the earliest stored reading so intermediate readings
	// already on record and everything downstream feed the same window.
	earliest := stored[0].RecordedAt
	for _, reading := range stored[1:] {
		if reading.RecordedAt.Before(earliest) {
			earliest = reading.RecordedAt
		}
	}
	result, err := s.rederiveFrom(ctx, first.StationID, first.Key(), earliest)
	if err != nil {
		return sales.Result{}, err
	}
	result.Faults = append(faults, result.Faults...)
	return result, nil
}

func (s *ReadingService) derive(ctx context.Context, window []readings.NozzleReading) (sales.Result, error) {
	result, err := s.engine.Derive(ctx, window)
	if err != nil {
		return sales.Result{}, err
	}
	if err := s.sales.UpsertSales(ctx, result.Sales); err != nil {
		return sales.Result{}, err
	}
	metrics.AddSalesDerived(len(result.Sales))
	for _, fault := range result.Faults {
		if errors.Is(fault.Err, pricing.ErrMissingPrice) {
			metrics.IncDerivationFault("missing_price")
		} else {
			metrics.IncDerivationFault("meter_reset")
		}
	}
	return result, nil
}

// CorrectReading supersedes a stored reading with a corrected cumulative
// volume and re-derives every sale downstream of the corrected point.
func (s *ReadingService) CorrectReading(ctx context.Context, actor auth.Actor, readingID string, cumulativeVolume float64) (*readings.NozzleReading, sales.Result, error) {
	prior, err := s.readings.Get(ctx, readingID)
	if err != nil {
		return nil, sales.Result{}, err
	}
	if err := auth.Scope(actor, prior.StationID, auth.ActionCreateReading); err != nil {
		return nil, sales.Result{}, err
	}
	if cumulativeVolume < 0 {
		return nil, sales.Result{}, &readings.ValidationError{Field: "cumulative_volume", Reason: "must be >= 0"}
	}

	unlock := s.locks.lock(lockKey(prior.StationID, prior.Key()))
	defer unlock()

	corrected := *prior
	corrected.ID = uuid.NewString()
	corrected.CumulativeVolume = cumulativeVolume
	corrected.ManualEntry = true
	corrected.EnteredBy = actor.ID
	corrected.SupersedesID = prior.ID
	corrected.CreatedAt = s.clock.Now().UTC()
	if err := s.readings.Insert(ctx, &corrected); err != nil {
		return nil, sales.Result{}, err
	}
	if err := s.sales.DeleteBySourceReading(ctx, prior.ID); err != nil {
		return nil, sales.Result{}, err
	}

	result, err := s.rederiveFrom(ctx, corrected.StationID, corrected.Key(), corrected.RecordedAt)
	if err != nil {
		return nil, sales.Result{}, err
	}
	return &corrected, result, nil
}

// DeleteReading removes a reading entered by the caller within the audit
// window, drops its derived sale, and re-derives the successor.
func (s *ReadingService) DeleteReading(ctx context.Context, actor auth.Actor, readingID string) error {
	reading, err := s.readings.Get(ctx, readingID)
	if err != nil {
		return err
	}
	if err := auth.Scope(actor, reading.StationID, auth.ActionDeleteReading); err != nil {
		return err
	}
	if reading.EnteredBy != actor.ID {
		return readings.ErrNotOwner
	}
	if s.clock.Now().Sub(reading.CreatedAt) > s.auditWindow {
		return readings.ErrAuditWindowClosed
	}

	unlock := s.locks.lock(lockKey(reading.StationID, reading.Key()))
	defer unlock()

	if err := s.readings.Delete(ctx, readingID); err != nil {
		return err
	}
	if err := s.sales.DeleteBySourceReading(ctx, readingID); err != nil {
		return err
	}
	_, err = s.rederiveFrom(ctx, reading.StationID, reading.Key(), reading.RecordedAt)
	return err
}

// ListSales returns committed sales for a station and date, optionally
// narrowed to one shift.
func (s *ReadingService) ListSales(ctx context.Context, actor auth.Actor, stationID string, date time.Time, shift sales.Shift) ([]sales.Sale, error) {
	if err := auth.Scope(actor, stationID, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.sales.List(ctx, stationID, date, shift)
}

// rederiveFrom replays derivation for every reading at or after an instant,
// seeded with the preceding baseline. The upsert keyed on source reading id
// makes the replay idempotent.
func (s *ReadingService) rederiveFrom(ctx context.Context, stationID string, key readings.NozzleKey, from time.Time) (sales.Result, error) {
	baseline, err := s.readings.LatestBefore(ctx, stationID, key, from)
	if err != nil {
		return sales.Result{}, err
	}
	rest, err := s.readings.ListByNozzle(ctx, stationID, key, from, farFuture)
	if err != nil {
		return sales.Result{}, err
	}

	window := []readings.NozzleReading{}
	if baseline != nil {
		window = append(window, *baseline)
	}
	window = append(window, rest...)
	return s.derive(ctx, window)
}

func (s *ReadingService) fill(reading *readings.NozzleReading) {
	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}
	if reading.CreatedAt.IsZero() {
		reading.CreatedAt = s.clock.Now().UTC()
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
}

var farFuture = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

func lockKey(stationID string, key readings.NozzleKey) string {
	return fmt.Sprintf("%s|%s|%s", stationID, key.PumpID, key.NozzleID)
}

func groupBatch(batch []readings.NozzleReading) (map[string][]readings.NozzleReading, []string) {
	groups := make(map[string][]readings.NozzleReading)
	var order []string
	for _, reading := range batch {
		key := lockKey(reading.StationID, reading.Key())
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], reading)
	}
	return groups, order
}

// nozzleLocks serializes work per nozzle.
type nozzleLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *nozzleLocks) lock(key string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
