package closure

import (
	"testing"
	"time"

	sales "fuelsync/internal/sales/domain"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDraft, StatusDraft, true},
		{StatusDraft, StatusSubmitted, true},
		{StatusSubmitted, StatusApproved, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusDraft, StatusApproved, false},
		{StatusSubmitted, StatusDraft, false},
		{StatusApproved, StatusDraft, false},
		{StatusApproved, StatusSubmitted, false},
		{StatusRejected, StatusSubmitted, false},
		{StatusRejected, StatusDraft, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestRecomputeExpectedCashAndVariance(t *testing.T) {
	actual := 5950.0
	record := &DailyClosure{
		StationID:    "station-1",
		ClosureDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Shift:        sales.ShiftFullDay,
		ActualCash:   &actual,
		CardPayments: 3000,
		UPIPayments:  2000,
		CreditSales:  1000,
	}
	record.Recompute(sales.Summary{TotalAmount: 12000, TotalLitres: 120})

	if record.ExpectedCash != 6000 {
		t.Errorf("expected cash = %v, want 6000", record.ExpectedCash)
	}
	if record.CashVariance == nil || *record.CashVariance != -50 {
		t.Errorf("variance = %v, want -50", record.CashVariance)
	}
}

func TestRecomputeWithoutActualCash(t *testing.T) {
	record := &DailyClosure{
		StationID:   "station-1",
		ClosureDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Shift:       sales.ShiftFullDay,
	}
	record.Recompute(sales.Summary{TotalAmount: 5000})

	if record.ExpectedCash != 5000 {
		t.Errorf("expected cash = %v, want 5000", record.ExpectedCash)
	}
	if record.CashVariance != nil {
		t.Errorf("variance = %v, want nil until cash is counted", *record.CashVariance)
	}
}

func TestValidateRejectsNegativeTenders(t *testing.T) {
	record := &DailyClosure{
		StationID:    "station-1",
		ClosureDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Shift:        sales.ShiftFullDay,
		CardPayments: -1,
	}
	if err := record.Validate(); err == nil {
		t.Fatal("negative card payments accepted")
	}

	record.CardPayments = 0
	record.Shift = "graveyard"
	if err := record.Validate(); err == nil {
		t.Fatal("unknown shift accepted")
	}
}
