package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultFuelPricesTable = "fuel_prices"

// PostgresProvider resolves prices from the fuel price table.
type PostgresProvider struct {
	db    *sql.DB
	table string
}

// PostgresOption configures the provider.
type PostgresOption func(*PostgresProvider)

// WithTable overrides the fuel prices table name.
func WithTable(table string) PostgresOption {
	return func(p *PostgresProvider) {
		if table != "" {
			p.table = table
		}
	}
}

// NewPostgresProvider constructs a provider.
func NewPostgresProvider(db *sql.DB, opts ...PostgresOption) *PostgresProvider {
	p := &PostgresProvider{db: db, table: defaultFuelPricesTable}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// EffectivePrice returns the most recent price with valid_from <= at.
func (p *PostgresProvider) EffectivePrice(ctx context.Context, stationID, fuelType string, at time.Time) (float64, error) {
	if p == nil || p.db == nil {
		return 0, errors.New("price provider: nil db")
	}
	if stationID == "" {
		return 0, errors.New("price provider: empty station id")
	}
	if fuelType == "" {
		return 0, errors.New("price provider: empty fuel type")
	}
	if at.IsZero() {
		return 0, errors.New("price provider: invalid timestamp")
	}

	query := fmt.Sprintf(`
SELECT price_per_litre
FROM %s
WHERE station_id = $1 AND fuel_type = $2 AND valid_from <= $3
ORDER BY valid_from DESC
LIMIT 1`, p.table)

	var price float64
	if err := p.db.QueryRowContext(ctx, query, stationID, fuelType, at.UTC()).Scan(&price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrMissingPrice
		}
		return 0, err
	}
	return price, nil
}
