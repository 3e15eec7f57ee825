package closure

import (
	"time"

	sales "fuelsync/internal/sales/domain"
)

// Status is the closure lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// NormalizeStatus validates a status string.
func NormalizeStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return Status(value), true
	default:
		return "", false
	}
}

// transitions is the closed edge set of the state machine. Draft re-enters
// itself on repeated saves. Approved has no outgoing edge; rejected is
// terminal here, a fresh draft is required for re-submission.
var transitions = map[Status][]Status{
	StatusDraft:     {StatusDraft, StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
}

// CanTransition reports whether the edge from→to exists.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DailyClosure is the end-of-period reconciliation record for one
// station/date/shift. Derived fields are always recomputed from the tender
// aggregator at save time; client-supplied totals are never trusted.
type DailyClosure struct {
	ID               string
	StationID        string
	ClosureDate      time.Time
	Shift            sales.Shift
	TotalSalesAmount float64
	TotalLitresSold  float64
	FuelBreakdown    map[string]sales.FuelBreakdown
	ExpectedCash     float64
	ActualCash       *float64
	CardPayments     float64
	UPIPayments      float64
	CreditSales      float64
	CashVariance     *float64
	Status           Status
	PreparedBy       string
	ApprovedBy       string
	ApprovedAt       time.Time
	RejectionReason  string
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Recompute overwrites the derived fields from an aggregation:
// expected cash is sales minus the non-cash tenders, variance is tendered
// cash against expected when actual cash has been counted.
func (c *DailyClosure) Recompute(summary sales.Summary) {
	c.TotalSalesAmount = summary.TotalAmount
	c.TotalLitresSold = summary.TotalLitres
	c.FuelBreakdown = summary.PerFuel
	c.ExpectedCash = sales.Round2(c.TotalSalesAmount - c.CardPayments - c.UPIPayments - c.CreditSales)
	if c.ActualCash != nil {
		variance := sales.Round2(*c.ActualCash - c.ExpectedCash)
		c.CashVariance = &variance
	} else {
		c.CashVariance = nil
	}
}

// Validate checks tender fields.
func (c *DailyClosure) Validate() error {
	switch {
	case c.StationID == "":
		return &ValidationError{Field: "station_id", Reason: "required"}
	case c.ClosureDate.IsZero():
		return &ValidationError{Field: "closure_date", Reason: "required"}
	case c.CardPayments < 0:
		return &ValidationError{Field: "card_payments", Reason: "must be >= 0"}
	case c.UPIPayments < 0:
		return &ValidationError{Field: "upi_payments", Reason: "must be >= 0"}
	case c.CreditSales < 0:
		return &ValidationError{Field: "credit_sales", Reason: "must be >= 0"}
	case c.ActualCash != nil && *c.ActualCash < 0:
		return &ValidationError{Field: "actual_cash", Reason: "must be >= 0"}
	}
	if _, ok := sales.NormalizeShift(string(c.Shift)); !ok {
		return &ValidationError{Field: "shift", Reason: "unknown shift"}
	}
	return nil
}
