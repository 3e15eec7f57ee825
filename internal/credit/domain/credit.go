package credit

import (
	"time"

	sales "fuelsync/internal/sales/domain"
)

// TransactionType distinguishes ledger entries.
type TransactionType string

const (
	TypeCredit     TransactionType = "credit"
	TypeSettlement TransactionType = "settlement"
)

// CreditTransaction is one ledger entry for a creditor. Outstanding balance
// of a credit entry is Amount minus the allocations applied against it.
type CreditTransaction struct {
	ID              string
	CreditorID      string
	StationID       string
	Amount          float64
	TransactionDate time.Time
	Type            TransactionType
	ReferenceNumber string
	Allocated       float64
}

// Outstanding returns the unsettled remainder of a credit entry.
func (t CreditTransaction) Outstanding() float64 {
	return sales.Round2(t.Amount - t.Allocated)
}

// Settlement is a payment applied against outstanding credit entries.
type Settlement struct {
	ID              string
	CreditorID      string
	StationID       string
	Amount          float64
	ReferenceNumber string
	SettledBy       string
	SettledAt       time.Time
}

// SettlementAllocation applies part of a settlement to one credit entry.
type SettlementAllocation struct {
	SettlementID        string
	CreditTransactionID string
	Amount              float64
}

// AllocationRequest is one requested allocation line.
type AllocationRequest struct {
	CreditTransactionID string
	Amount              float64
}

// PlanSettlement validates allocation requests against the open credit
// entries and returns the settlement total. When amount is nil the total is
// the sum of the allocations; when present it must match that sum exactly.
// Cumulative allocations may never exceed a credit entry's original amount.
func PlanSettlement(amount *float64, requests []AllocationRequest, open []CreditTransaction) (float64, error) {
	if len(requests) == 0 {
		return 0, &ValidationError{Field: "allocations", Reason: "at least one required"}
	}

	byID := make(map[string]CreditTransaction, len(open))
	for _, entry := range open {
		byID[entry.ID] = entry
	}

	pending := make(map[string]float64, len(requests))
	var total float64
	for _, request := range requests {
		if request.Amount <= 0 {
			return 0, &ValidationError{Field: "allocations.amount", Reason: "must be > 0"}
		}
		entry, ok := byID[request.CreditTransactionID]
		if !ok {
			return 0, ErrCreditNotFound
		}
		if entry.Type != TypeCredit {
			return 0, &ValidationError{Field: "allocations.credit_transaction_id", Reason: "not a credit entry"}
		}
		pending[entry.ID] += request.Amount
		if sales.Round2(entry.Allocated+pending[entry.ID]) > entry.Amount {
			return 0, ErrOverAllocation
		}
		total += request.Amount
	}
	total = sales.Round2(total)

	if amount != nil {
		if *amount <= 0 {
			return 0, &ValidationError{Field: "amount", Reason: "must be > 0"}
		}
		if sales.Round2(*amount) != total {
			return 0, &ValidationError{Field: "amount", Reason: "does not match allocation total"}
		}
	}
	return total, nil
}
