package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"fuelsync/internal/auth"
	credit "fuelsync/internal/credit/domain"
	"fuelsync/internal/observability/metrics"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// SettleInput carries a settlement request.
type SettleInput struct {
	CreditorID      string
	StationID       string
	Amount          *float64
	ReferenceNumber string
	Allocations     []credit.AllocationRequest
}

// SettlementService applies settlement payments against outstanding credit.
type SettlementService struct {
	repo  credit.Repository
	clock Clock
}

// NewSettlementService constructs a service.
func NewSettlementService(repo credit.Repository, clock Clock) (*SettlementService, error) {
	if repo == nil {
		return nil, errors.New("settlement service: nil repo")
	}
	if clock == nil {
		return nil, errors.New("settlement service: nil clock")
	}
	return &SettlementService{repo: repo, clock: clock}, nil
}

// Settle validates the allocation plan and commits it atomically.
func (s *SettlementService) Settle(ctx context.Context, actor auth.Actor, input SettleInput) (*credit.Settlement, []credit.SettlementAllocation, error) {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveSettlement(result, s.clock.Now().Sub(start))
	}()

	if err := auth.Scope(actor, input.StationID, auth.ActionApplySettlement); err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}
	if input.CreditorID == "" {
		result = metrics.ResultError
		return nil, nil, &credit.ValidationError{Field: "creditor_id", Reason: "required"}
	}

	open, err := s.repo.ListByCreditor(ctx, input.CreditorID, input.StationID)
	if err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}
	total, err := credit.PlanSettlement(input.Amount, input.Allocations, open)
	if err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}

	settlement := &credit.Settlement{
		ID:              uuid.NewString(),
		CreditorID:      input.CreditorID,
		StationID:       input.StationID,
		Amount:          total,
		ReferenceNumber: input.ReferenceNumber,
		SettledBy:       actor.ID,
		SettledAt:       s.clock.Now().UTC(),
	}
	allocations := make([]credit.SettlementAllocation, 0, len(input.Allocations))
	for _, request := range input.Allocations {
		allocations = append(allocations, credit.SettlementAllocation{
			SettlementID:        settlement.ID,
			CreditTransactionID: request.CreditTransactionID,
			Amount:              request.Amount,
		})
	}
	if err := s.repo.ApplySettlement(ctx, settlement, allocations); err != nil {
		result = metrics.ResultError
		return nil, nil, err
	}
	return settlement, allocations, nil
}

// Transactions returns the creditor's ledger visible to the actor.
func (s *SettlementService) Transactions(ctx context.Context, actor auth.Actor, creditorID, stationID string) ([]credit.CreditTransaction, error) {
	if err := auth.Scope(actor, stationID, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.repo.ListByCreditor(ctx, creditorID, stationID)
}
