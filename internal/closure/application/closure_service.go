package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"fuelsync/internal/auth"
	closure "fuelsync/internal/closure/domain"
	"fuelsync/internal/observability/metrics"
	sales "fuelsync/internal/sales/domain"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// ReviewAction selects the outcome of a review.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
)

// SaveInput carries the caller-editable closure fields. Totals are always
// recomputed server-side.
type SaveInput struct {
	StationID    string
	ClosureDate  time.Time
	Shift        sales.Shift
	ActualCash   *float64
	CardPayments float64
	UPIPayments  float64
	CreditSales  float64
}

// ClosureService drives the daily-closure reconciliation lifecycle.
type ClosureService struct {
	repo       closure.Repository
	aggregator sales.Aggregator
	clock      Clock
}

// NewClosureService constructs a service.
func NewClosureService(repo closure.Repository, aggregator sales.Aggregator, clock Clock) (*ClosureService, error) {
	if repo == nil {
		return nil, errors.New("closure service: nil repo")
	}
	if aggregator == nil {
		return nil, errors.New("closure service: nil aggregator")
	}
	if clock == nil {
		return nil, errors.New("closure service: nil clock")
	}
	return &ClosureService{repo: repo, aggregator: aggregator, clock: clock}, nil
}

// Prepare returns the aggregation preview a closure would be built from.
func (s *ClosureService) Prepare(ctx context.Context, actor auth.Actor, stationID string, date time.Time, shift sales.Shift) (sales.Summary, error) {
	if err := auth.Scope(actor, stationID, auth.ActionRead); err != nil {
		return sales.Summary{}, err
	}
	if shift == "" {
		shift = sales.ShiftFullDay
	}
	return s.aggregator.Summarize(ctx, stationID, date, shift)
}

// Save creates or updates the draft closure for (station, date, shift).
// It returns the closure and whether a new row was created. A submitted or
// approved closure on the key is a conflict; a rejected one is terminal and
// no longer occupies the key, so a fresh draft replaces it.
func (s *ClosureService) Save(ctx context.Context, actor auth.Actor, input SaveInput) (*closure.DailyClosure, bool, error) {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveClosureSave(result, s.clock.Now().Sub(start))
	}()

	if err := auth.Scope(actor, input.StationID, auth.ActionSaveClosure); err != nil {
		result = metrics.ResultError
		return nil, false, err
	}
	if input.Shift == "" {
		input.Shift = sales.ShiftFullDay
	}

	existing, err := s.repo.FindByKey(ctx, input.StationID, input.ClosureDate, input.Shift)
	if err != nil {
		result = metrics.ResultError
		return nil, false, err
	}
	if existing != nil && existing.Status != closure.StatusDraft {
		result = metrics.ResultError
		return nil, false, closure.ErrConflict
	}

	summary, err := s.aggregator.Summarize(ctx, input.StationID, input.ClosureDate, input.Shift)
	if err != nil {
		result = metrics.ResultError
		return nil, false, err
	}

	now := s.clock.Now().UTC()
	if existing == nil {
		record := &closure.DailyClosure{
			ID:           uuid.NewString(),
			StationID:    input.StationID,
			ClosureDate:  dateOnly(input.ClosureDate),
			Shift:        input.Shift,
			ActualCash:   input.ActualCash,
			CardPayments: input.CardPayments,
			UPIPayments:  input.UPIPayments,
			CreditSales:  input.CreditSales,
			Status:       closure.StatusDraft,
			PreparedBy:   actor.ID,
			Version:      1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		record.Recompute(summary)
		if err := record.Validate(); err != nil {
			result = metrics.ResultError
			return nil, false, err
		}
		if err := s.repo.Create(ctx, record); err != nil {
			result = metrics.ResultError
			return nil, false, err
		}
		return record, true, nil
	}

	expectVersion := existing.Version
	existing.ActualCash = input.ActualCash
	existing.CardPayments = input.CardPayments
	existing.UPIPayments = input.UPIPayments
	existing.CreditSales = input.CreditSales
	existing.UpdatedAt = now
	existing.Version++
	existing.Recompute(summary)
	if err := existing.Validate(); err != nil {
		result = metrics.ResultError
		return nil, false, err
	}
	if err := s.repo.Update(ctx, existing, expectVersion, closure.StatusDraft); err != nil {
		result = metrics.ResultError
		return nil, false, err
	}
	return existing, false, nil
}

// Submit moves a draft closure to submitted. Only an actor scoped to the
// record's station may submit.
func (s *ClosureService) Submit(ctx context.Context, actor auth.Actor, id string) (*closure.DailyClosure, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		metrics.IncClosureTransition("submit", metrics.ResultError)
		return nil, err
	}
	if err := auth.Scope(actor, record.StationID, auth.ActionSubmitClosure); err != nil {
		metrics.IncClosureTransition("submit", metrics.ResultError)
		return nil, err
	}
	if !closure.CanTransition(record.Status, closure.StatusSubmitted) {
		metrics.IncClosureTransition("submit", metrics.ResultError)
		return nil, closure.ErrInvalidTransition
	}

	expectVersion, expectStatus := record.Version, record.Status
	record.Status = closure.StatusSubmitted
	record.Version++
	record.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, record, expectVersion, expectStatus); err != nil {
		metrics.IncClosureTransition("submit", metrics.ResultError)
		return nil, err
	}
	metrics.IncClosureTransition("submit", metrics.ResultSuccess)
	return record, nil
}

// Review approves or rejects a submitted closure. Rejection requires a
// non-empty reason. Both outcomes stamp the reviewer.
func (s *ClosureService) Review(ctx context.Context, actor auth.Actor, id string, action ReviewAction, rejectionReason string) (*closure.DailyClosure, error) {
	transition := string(action)
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		metrics.IncClosureTransition(transition, metrics.ResultError)
		return nil, err
	}
	if err := auth.Scope(actor, record.StationID, auth.ActionReviewClosure); err != nil {
		metrics.IncClosureTransition(transition, metrics.ResultError)
		return nil, err
	}

	var next closure.Status
	switch action {
	case ReviewApprove:
		next = closure.StatusApproved
	case ReviewReject:
		if strings.TrimSpace(rejectionReason) == "" {
			metrics.IncClosureTransition(transition, metrics.ResultError)
			return nil, &closure.ValidationError{Field: "rejection_reason", Reason: "required"}
		}
		next = closure.StatusRejected
	default:
		metrics.IncClosureTransition(transition, metrics.ResultError)
		return nil, &closure.ValidationError{Field: "action", Reason: "must be approve or reject"}
	}
	if !closure.CanTransition(record.Status, next) {
		metrics.IncClosureTransition(transition, metrics.ResultError)
		return nil, closure.ErrInvalidTransition
	}

	expectVersion, expectStatus := record.Version, record.Status
	record.Status = next
	record.ApprovedBy = actor.ID
	record.ApprovedAt = s.clock.Now().UTC()
	if next == closure.StatusRejected {
		record.RejectionReason = rejectionReason
	}
	record.Version++
	record.UpdatedAt = record.ApprovedAt
	if err := s.repo.Update(ctx, record, expectVersion, expectStatus); err != nil {
		metrics.IncClosureTransition(transition, metrics.ResultError)
		return nil, err
	}
	metrics.IncClosureTransition(transition, metrics.ResultSuccess)
	return record, nil
}

// Get loads a closure visible to the actor.
func (s *ClosureService) Get(ctx context.Context, actor auth.Actor, id string) (*closure.DailyClosure, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Scope(actor, record.StationID, auth.ActionRead); err != nil {
		return nil, err
	}
	return record, nil
}

// List returns the actor's visible closures for a date. Scoping narrows the
// result silently, as list endpoints do.
func (s *ClosureService) List(ctx context.Context, actor auth.Actor, stationIDs []string, date time.Time) ([]closure.DailyClosure, error) {
	visible := auth.FilterStations(actor, stationIDs)
	if len(visible) == 0 && actor.Role != auth.RoleAdmin {
		return nil, nil
	}
	return s.repo.List(ctx, visible, date)
}

func dateOnly(date time.Time) time.Time {
	date = date.UTC()
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}
