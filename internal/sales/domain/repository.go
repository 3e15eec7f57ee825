package sales

import (
	"context"
	"time"
)

// Repository persists derived sales.
type Repository interface {
	// UpsertSales writes sales keyed on source reading id so re-derivation
	// is idempotent.
	UpsertSales(ctx context.Context, sales []Sale) error
	// DeleteBySourceReading removes the sale derived from a reading.
	DeleteBySourceReading(ctx context.Context, sourceReadingID string) error
	// List returns sales for a station/date, optionally filtered by shift
	// (ShiftFullDay ignores the shift dimension).
	List(ctx context.Context, stationID string, date time.Time, shift Shift) ([]Sale, error)
}

// FuelBreakdown aggregates one fuel type.
type FuelBreakdown struct {
	Litres float64 `json:"litres"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// Summary is the tender aggregation for a station/date/shift.
type Summary struct {
	StationID        string                   `json:"station_id"`
	Date             time.Time                `json:"date"`
	Shift            Shift                    `json:"shift"`
	TotalAmount      float64                  `json:"total_amount"`
	TotalLitres      float64                  `json:"total_litres"`
	TransactionCount int                      `json:"transaction_count"`
	PerFuel          map[string]FuelBreakdown `json:"per_fuel"`
}

// Aggregator is a read-only projection over committed sales.
type Aggregator interface {
	Summarize(ctx context.Context, stationID string, date time.Time, shift Shift) (Summary, error)
}
