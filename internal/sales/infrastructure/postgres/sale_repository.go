package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sales "fuelsync/internal/sales/domain"
)

const defaultSalesTable = "sales"

// SaleRepository is a Postgres implementation of sale persistence and the
// tender aggregator.
type SaleRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*SaleRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *SaleRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewSaleRepository constructs a repository.
func NewSaleRepository(db *sql.DB, opts ...RepositoryOption) *SaleRepository {
	repo := &SaleRepository{db: db, table: defaultSalesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// UpsertSales writes sales in one transaction, keyed on source reading id.
func (r *SaleRepository) UpsertSales(ctx context.Context, batch []sales.Sale) error {
	if r == nil || r.db == nil {
		return errors.New("sale repo: nil db")
	}
	if len(batch) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, station_id, pump_id, nozzle_id, fuel_type,
	delta_volume, price_per_litre, total_amount,
	shift, sale_date, source_reading_id, reset_detected, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (source_reading_id)
DO UPDATE SET
	delta_volume = EXCLUDED.delta_volume,
	price_per_litre = EXCLUDED.price_per_litre,
	total_amount = EXCLUDED.total_amount,
	shift = EXCLUDED.shift,
	sale_date = EXCLUDED.sale_date,
	reset_detected = EXCLUDED.reset_detected`, r.table)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, sale := range batch {
		createdAt := sale.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := stmt.ExecContext(ctx,
			sale.ID, sale.StationID, sale.PumpID, sale.NozzleID, sale.FuelType,
			sale.DeltaVolume, sale.PricePerLitre, sale.TotalAmount,
			string(sale.Shift), sale.SaleDate, sale.SourceReadingID, sale.ResetDetected, createdAt,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// DeleteBySourceReading removes the sale derived from a reading.
func (r *SaleRepository) DeleteBySourceReading(ctx context.Context, sourceReadingID string) error {
	if r == nil || r.db == nil {
		return errors.New("sale repo: nil db")
	}
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE source_reading_id = $1`, r.table), sourceReadingID)
	return err
}

// List returns sales for a station/date, optionally filtered by shift.
func (r *SaleRepository) List(ctx context.Context, stationID string, date time.Time, shift sales.Shift) ([]sales.Sale, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sale repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, station_id, pump_id, nozzle_id, fuel_type,
	delta_volume, price_per_litre, total_amount,
	shift, sale_date, source_reading_id, reset_detected, created_at
FROM %s
WHERE station_id = $1 AND sale_date = $2`, r.table)
	args := []any{stationID, dateOnly(date)}
	if shift != "" && shift != sales.ShiftFullDay {
		query += ` AND shift = $3`
		args = append(args, string(shift))
	}
	query += ` ORDER BY sale_date ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sales.Sale
	for rows.Next() {
		var sale sales.Sale
		var shiftValue string
		if err := rows.Scan(
			&sale.ID, &sale.StationID, &sale.PumpID, &sale.NozzleID, &sale.FuelType,
			&sale.DeltaVolume, &sale.PricePerLitre, &sale.TotalAmount,
			&shiftValue, &sale.SaleDate, &sale.SourceReadingID, &sale.ResetDetected, &sale.CreatedAt,
		); err != nil {
			return nil, err
		}
		sale.Shift = sales.Shift(shiftValue)
		out = append(out, sale)
	}
	return out, rows.Err()
}

// Summarize aggregates committed sales for a station/date/shift.
func (r *SaleRepository) Summarize(ctx context.Context, stationID string, date time.Time, shift sales.Shift) (sales.Summary, error) {
	summary := sales.Summary{
		StationID: stationID,
		Date:      dateOnly(date),
		Shift:     shift,
		PerFuel:   make(map[string]sales.FuelBreakdown),
	}
	if r == nil || r.db == nil {
		return summary, errors.New("sale repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT fuel_type,
	COALESCE(SUM(delta_volume), 0),
	COALESCE(SUM(total_amount), 0),
	COUNT(*)
FROM %s
WHERE station_id = $1 AND sale_date = $2`, r.table)
	args := []any{stationID, dateOnly(date)}
	if shift != "" && shift != sales.ShiftFullDay {
		query += ` AND shift = $3`
		args = append(args, string(shift))
	}
	query += ` GROUP BY fuel_type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var fuelType string
		var breakdown sales.FuelBreakdown
		if err := rows.Scan(&fuelType, &breakdown.Litres, &breakdown.Amount, &breakdown.Count); err != nil {
			return summary, err
		}
		summary.PerFuel[fuelType] = breakdown
		summary.TotalLitres += breakdown.Litres
		summary.TotalAmount += breakdown.Amount
		summary.TransactionCount += breakdown.Count
	}
	summary.TotalAmount = sales.Round2(summary.TotalAmount)
	return summary, rows.Err()
}

func dateOnly(date time.Time) time.Time {
	date = date.UTC()
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}
