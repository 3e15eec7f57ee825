package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	closure "fuelsync/internal/closure/domain"
	sales "fuelsync/internal/sales/domain"
)

const defaultClosuresTable = "daily_closures"

const pgUniqueViolation = "23505"

// ClosureRepository is a Postgres implementation of closure persistence.
type ClosureRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ClosureRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ClosureRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewClosureRepository constructs a repository.
func NewClosureRepository(db *sql.DB, opts ...RepositoryOption) *ClosureRepository {
	repo := &ClosureRepository{db: db, table: defaultClosuresTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

const closureColumns = `
	id, station_id, closure_date, shift,
	total_sales_amount, total_litres_sold, fuel_breakdown,
	expected_cash, actual_cash, card_payments, upi_payments, credit_sales,
	cash_variance, status, prepared_by, approved_by, approved_at,
	rejection_reason, version, created_at, updated_at`

// FindByKey returns the live (non-rejected) closure for a station/date/shift,
// or nil. Rejected closures are terminal records and do not occupy the key.
func (r *ClosureRepository) FindByKey(ctx context.Context, stationID string, date time.Time, shift sales.Shift) (*closure.DailyClosure, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("closure repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE station_id = $1 AND closure_date = $2 AND shift = $3 AND status <> 'rejected'`,
		closureColumns, r.table)
	record, err := scanClosure(r.db.QueryRowContext(ctx, query, stationID, dateOnly(date), string(shift)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// GetByID loads a closure by id.
func (r *ClosureRepository) GetByID(ctx context.Context, id string) (*closure.DailyClosure, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("closure repo: nil db")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, closureColumns, r.table)
	record, err := scanClosure(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, closure.ErrClosureNotFound
		}
		return nil, err
	}
	return record, nil
}

// Create inserts a new closure. The unique (station, date, shift) constraint
// maps to ErrConflict.
func (r *ClosureRepository) Create(ctx context.Context, record *closure.DailyClosure) error {
	if r == nil || r.db == nil {
		return errors.New("closure repo: nil db")
	}
	if record == nil {
		return errors.New("closure repo: nil closure")
	}
	breakdown, err := json.Marshal(record.FuelBreakdown)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (%s) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
)`, r.table, closureColumns)

	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.StationID, dateOnly(record.ClosureDate), string(record.Shift),
		record.TotalSalesAmount, record.TotalLitresSold, breakdown,
		record.ExpectedCash, nullFloat(record.ActualCash), record.CardPayments, record.UPIPayments, record.CreditSales,
		nullFloat(record.CashVariance), string(record.Status), record.PreparedBy, nullString(record.ApprovedBy), nullTime(record.ApprovedAt),
		nullString(record.RejectionReason), record.Version, record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return closure.ErrConflict
		}
		return err
	}
	return nil
}

// Update persists a closure guarded by the version and status the caller
// read. A stale guard affects zero rows and yields ErrConflict.
func (r *ClosureRepository) Update(ctx context.Context, record *closure.DailyClosure, expectVersion int, expectStatus closure.Status) error {
	if r == nil || r.db == nil {
		return errors.New("closure repo: nil db")
	}
	if record == nil {
		return errors.New("closure repo: nil closure")
	}
	breakdown, err := json.Marshal(record.FuelBreakdown)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s SET
	total_sales_amount = $1,
	total_litres_sold = $2,
	fuel_breakdown = $3,
	expected_cash = $4,
	actual_cash = $5,
	card_payments = $6,
	upi_payments = $7,
	credit_sales = $8,
	cash_variance = $9,
	status = $10,
	approved_by = $11,
	approved_at = $12,
	rejection_reason = $13,
	version = $14,
	updated_at = $15
WHERE id = $16 AND version = $17 AND status = $18`, r.table)

	res, err := r.db.ExecContext(ctx, query,
		record.TotalSalesAmount, record.TotalLitresSold, breakdown,
		record.ExpectedCash, nullFloat(record.ActualCash), record.CardPayments, record.UPIPayments, record.CreditSales,
		nullFloat(record.CashVariance), string(record.Status), nullString(record.ApprovedBy), nullTime(record.ApprovedAt),
		nullString(record.RejectionReason), record.Version, record.UpdatedAt,
		record.ID, expectVersion, string(expectStatus),
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return closure.ErrConflict
	}
	return nil
}

// List returns closures for the given stations and date.
func (r *ClosureRepository) List(ctx context.Context, stationIDs []string, date time.Time) ([]closure.DailyClosure, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("closure repo: nil db")
	}
	if len(stationIDs) == 0 {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE closure_date = $1 ORDER BY station_id, shift`, closureColumns, r.table)
		return r.queryList(ctx, query, dateOnly(date))
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE closure_date = $1 AND station_id = ANY($2) ORDER BY station_id, shift`, closureColumns, r.table)
	return r.queryList(ctx, query, dateOnly(date), stationIDs)
}

func (r *ClosureRepository) queryList(ctx context.Context, query string, args ...any) ([]closure.DailyClosure, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []closure.DailyClosure
	for rows.Next() {
		record, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClosure(row rowScanner) (*closure.DailyClosure, error) {
	var record closure.DailyClosure
	var shift, status string
	var breakdown []byte
	var actualCash, cashVariance sql.NullFloat64
	var approvedBy, rejectionReason sql.NullString
	var approvedAt sql.NullTime
	if err := row.Scan(
		&record.ID, &record.StationID, &record.ClosureDate, &shift,
		&record.TotalSalesAmount, &record.TotalLitresSold, &breakdown,
		&record.ExpectedCash, &actualCash, &record.CardPayments, &record.UPIPayments, &record.CreditSales,
		&cashVariance, &status, &record.PreparedBy, &approvedBy, &approvedAt,
		&rejectionReason, &record.Version, &record.CreatedAt, &record.UpdatedAt,
	); err != nil {
		return nil, err
	}
	record.Shift = sales.Shift(shift)
	record.Status = closure.Status(status)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &record.FuelBreakdown); err != nil {
			return nil, err
		}
	}
	if actualCash.Valid {
		record.ActualCash = &actualCash.Float64
	}
	if cashVariance.Valid {
		record.CashVariance = &cashVariance.Float64
	}
	if approvedBy.Valid {
		record.ApprovedBy = approvedBy.String
	}
	if approvedAt.Valid {
		record.ApprovedAt = approvedAt.Time
	}
	if rejectionReason.Valid {
		record.RejectionReason = rejectionReason.String
	}
	return &record, nil
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}

func dateOnly(date time.Time) time.Time {
	date = date.UTC()
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
}
