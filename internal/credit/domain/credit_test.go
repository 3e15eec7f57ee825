package credit

import (
	"errors"
	"testing"
	"time"
)

func openEntries() []CreditTransaction {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []CreditTransaction{
		{ID: "c1", CreditorID: "fleet-1", StationID: "station-1", Amount: 300, Type: TypeCredit, TransactionDate: day},
		{ID: "c2", CreditorID: "fleet-1", StationID: "station-1", Amount: 150, Type: TypeCredit, TransactionDate: day.AddDate(0, 0, 1), Allocated: 50},
		{ID: "s1", CreditorID: "fleet-1", StationID: "station-1", Amount: 100, Type: TypeSettlement, TransactionDate: day.AddDate(0, 0, 2)},
	}
}

func TestPlanSettlementAllocates(t *testing.T) {
	total, err := PlanSettlement(nil, []AllocationRequest{
		{CreditTransactionID: "c1", Amount: 200},
		{CreditTransactionID: "c2", Amount: 100},
	}, openEntries())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if total != 300 {
		t.Errorf("total = %v, want 300", total)
	}
}

func TestPlanSettlementOverAllocation(t *testing.T) {
	_, err := PlanSettlement(nil, []AllocationRequest{
		{CreditTransactionID: "c1", Amount: 200},
		{CreditTransactionID: "c2", Amount: 200},
	}, openEntries())
	if !errors.Is(err, ErrOverAllocation) {
		t.Fatalf("err = %v, want over-allocation", err)
	}
}

func TestPlanSettlementCumulativeOverAllocation(t *testing.T) {
	// Two lines against the same entry count cumulatively.
	_, err := PlanSettlement(nil, []AllocationRequest{
		{CreditTransactionID: "c1", Amount: 200},
		{CreditTransactionID: "c1", Amount: 150},
	}, openEntries())
	if !errors.Is(err, ErrOverAllocation) {
		t.Fatalf("err = %v, want over-allocation", err)
	}
}

func TestPlanSettlementAmountMustMatch(t *testing.T) {
	amount := 250.0
	_, err := PlanSettlement(&amount, []AllocationRequest{
		{CreditTransactionID: "c1", Amount: 200},
	}, openEntries())
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want validation error", err)
	}

	amount = 200.0
	total, err := PlanSettlement(&amount, []AllocationRequest{
		{CreditTransactionID: "c1", Amount: 200},
	}, openEntries())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if total != 200 {
		t.Errorf("total = %v, want 200", total)
	}
}

func TestPlanSettlementRejectsUnknownAndNonCredit(t *testing.T) {
	_, err := PlanSettlement(nil, []AllocationRequest{
		{CreditTransactionID: "missing", Amount: 10},
	}, openEntries())
	if !errors.Is(err, ErrCreditNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}

	_, err = PlanSettlement(nil, []AllocationRequest{
		{CreditTransactionID: "s1", Amount: 10},
	}, openEntries())
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestOutstanding(t *testing.T) {
	entry := CreditTransaction{Amount: 150, Allocated: 50}
	if got := entry.Outstanding(); got != 100 {
		t.Errorf("outstanding = %v, want 100", got)
	}
}
