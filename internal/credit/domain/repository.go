package credit

import "context"

// Repository persists the credit ledger.
type Repository interface {
	// ListByCreditor returns the creditor's ledger entries for a station,
	// with allocations summed onto each credit entry.
	ListByCreditor(ctx context.Context, creditorID, stationID string) ([]CreditTransaction, error)
	// ApplySettlement commits the settlement, its allocations, and the
	// matching ledger entry in one transaction. Concurrent over-allocation
	// is re-checked inside the transaction and yields ErrOverAllocation.
	ApplySettlement(ctx context.Context, settlement *Settlement, allocations []SettlementAllocation) error
}
