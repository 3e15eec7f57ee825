package memory

import (
	"context"
	"sync"
	"time"

	sales "fuelsync/internal/sales/domain"
)

// SaleRepository is an in-memory sale store and aggregator for tests.
type SaleRepository struct {
	mu   sync.RWMutex
	data map[string]sales.Sale // keyed by source reading id
}

// NewSaleRepository constructs a repository.
func NewSaleRepository() *SaleRepository {
	return &SaleRepository{data: make(map[string]sales.Sale)}
}

// UpsertSales writes sales keyed on source reading id.
func (r *SaleRepository) UpsertSales(ctx context.Context, batch []sales.Sale) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sale := range batch {
		if sale.CreatedAt.IsZero() {
			sale.CreatedAt = time.Now().UTC()
		}
		r.data[sale.SourceReadingID] = sale
	}
	return nil
}

// DeleteBySourceReading removes the sale derived from a reading.
func (r *SaleRepository) DeleteBySourceReading(ctx context.Context, sourceReadingID string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, sourceReadingID)
	return nil
}

// List returns sales for a station/date/shift.
func (r *SaleRepository) List(ctx context.Context, stationID string, date time.Time, shift sales.Shift) ([]sales.Sale, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []sales.Sale
	for _, sale := range r.data {
		if matches(sale, stationID, date, shift) {
			out = append(out, sale)
		}
	}
	return out, nil
}

// Summarize aggregates stored sales.
func (r *SaleRepository) Summarize(ctx context.Context, stationID string, date time.Time, shift sales.Shift) (sales.Summary, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary := sales.Summary{
		StationID: stationID,
		Date:      date,
		Shift:     shift,
		PerFuel:   make(map[string]sales.FuelBreakdown),
	}
	for _, sale := range r.data {
		if !matches(sale, stationID, date, shift) {
			continue
		}
		breakdown := summary.PerFuel[sale.FuelType]
		breakdown.Litres += sale.DeltaVolume
		breakdown.Amount += sale.TotalAmount
		breakdown.Count++
		summary.PerFuel[sale.FuelType] = breakdown
		summary.TotalLitres += sale.DeltaVolume
		summary.TotalAmount += sale.TotalAmount
		summary.TransactionCount++
	}
	summary.TotalAmount = sales.Round2(summary.TotalAmount)
	return summary, nil
}

func matches(sale sales.Sale, stationID string, date time.Time, shift sales.Shift) bool {
	if sale.StationID != stationID {
		return false
	}
	y1, m1, d1 := sale.SaleDate.UTC().Date()
	y2, m2, d2 := date.UTC().Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		return false
	}
	if shift == "" || shift == sales.ShiftFullDay {
		return true
	}
	return sale.Shift == shift
}
