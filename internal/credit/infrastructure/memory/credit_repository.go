package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	credit "fuelsync/internal/credit/domain"
)

// CreditRepository is an in-memory credit ledger for tests.
type CreditRepository struct {
	mu           sync.Mutex
	transactions []credit.CreditTransaction
	settlements  []credit.Settlement
	allocations  []credit.SettlementAllocation
}

// NewCreditRepository constructs a repository.
func NewCreditRepository() *CreditRepository {
	return &CreditRepository{}
}

// Seed adds a ledger entry directly.
func (r *CreditRepository) Seed(entry credit.CreditTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactions = append(r.transactions, entry)
}

// ListByCreditor returns ledger entries with allocations summed on.
func (r *CreditRepository) ListByCreditor(ctx context.Context, creditorID, stationID string) ([]credit.CreditTransaction, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []credit.CreditTransaction
	for _, entry := range r.transactions {
		if entry.CreditorID != creditorID || entry.StationID != stationID {
			continue
		}
		entry.Allocated = r.allocatedLocked(entry.ID)
		out = append(out, entry)
	}
	return out, nil
}

// ApplySettlement commits the settlement atomically.
func (r *CreditRepository) ApplySettlement(ctx context.Context, settlement *credit.Settlement, allocations []credit.SettlementAllocation) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]float64)
	for _, allocation := range allocations {
		entry, ok := r.findLocked(allocation.CreditTransactionID, settlement.CreditorID, settlement.StationID)
		if !ok {
			return credit.ErrCreditNotFound
		}
		pending[entry.ID] += allocation.Amount
		if r.allocatedLocked(entry.ID)+pending[entry.ID] > entry.Amount {
			return credit.ErrOverAllocation
		}
	}

	r.settlements = append(r.settlements, *settlement)
	r.allocations = append(r.allocations, allocations...)
	r.transactions = append(r.transactions, credit.CreditTransaction{
		ID:              uuid.NewString(),
		CreditorID:      settlement.CreditorID,
		StationID:       settlement.StationID,
		Amount:          settlement.Amount,
		TransactionDate: settlement.SettledAt,
		Type:            credit.TypeSettlement,
		ReferenceNumber: settlement.ReferenceNumber,
	})
	return nil
}

func (r *CreditRepository) findLocked(id, creditorID, stationID string) (credit.CreditTransaction, bool) {
	for _, entry := range r.transactions {
		if entry.ID == id && entry.CreditorID == creditorID && entry.StationID == stationID && entry.Type == credit.TypeCredit {
			return entry, true
		}
	}
	return credit.CreditTransaction{}, false
}

func (r *CreditRepository) allocatedLocked(creditTransactionID string) float64 {
	var total float64
	for _, allocation := range r.allocations {
		if allocation.CreditTransactionID == creditTransactionID {
			total += allocation.Amount
		}
	}
	return total
}
