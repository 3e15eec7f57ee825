package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	readings "fuelsync/internal/readings/domain"
)

const defaultReadingsTable = "nozzle_readings"

const pgUniqueViolation = "23505"

// ReadingRepository is a Postgres implementation of the reading store.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewReadingRepository constructs a repository with default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Insert stores a reading. Manual duplicates on (pump, nozzle, recorded_at)
// surface as readings.ErrDuplicateReading via the partial unique index.
func (r *ReadingRepository) Insert(ctx context.Context, reading *readings.NozzleReading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	if err := reading.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id, station_id, pump_id, nozzle_id, fuel_type,
	cumulative_volume, recorded_at, manual_entry, source_confidence,
	entered_by, supersedes_id, created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, r.table)

	supersedes := sql.NullString{}
	if reading.SupersedesID != "" {
		supersedes = sql.NullString{String: reading.SupersedesID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		reading.ID, reading.StationID, reading.PumpID, reading.NozzleID, reading.FuelType,
		reading.CumulativeVolume, reading.RecordedAt.UTC(), reading.ManualEntry, reading.SourceConfidence,
		reading.EnteredBy, supersedes, reading.CreatedAt.UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return readings.ErrDuplicateReading
		}
		return err
	}
	return nil
}

// Get loads a reading by id.
func (r *ReadingRepository) Get(ctx context.Context, id string) (*readings.NozzleReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, station_id, pump_id, nozzle_id, fuel_type,
	cumulative_volume, recorded_at, manual_entry, source_confidence,
	entered_by, supersedes_id, created_at
FROM %s
WHERE id = $1`, r.table)

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, readings.ErrReadingNotFound
		}
		return nil, err
	}
	return reading, nil
}

// LatestBefore returns the newest non-superseded reading before an instant.
// Timestamp ties resolve manual-last, matching derivation order, so the
// baseline is the reading that closed the last derived pair.
func (r *ReadingRepository) LatestBefore(ctx context.Context, stationID string, key readings.NozzleKey, before time.Time) (*readings.NozzleReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, station_id, pump_id, nozzle_id, fuel_type,
	cumulative_volume, recorded_at, manual_entry, source_confidence,
	entered_by, supersedes_id, created_at
FROM %s r
WHERE station_id = $1 AND pump_id = $2 AND nozzle_id = $3 AND recorded_at < $4
	AND NOT EXISTS (SELECT 1 FROM %s s WHERE s.supersedes_id = r.id)
ORDER BY recorded_at DESC, manual_entry DESC, created_at DESC
LIMIT 1`, r.table, r.table)

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, stationID, key.PumpID, key.NozzleID, before.UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return reading, nil
}

// ListByNozzle returns non-superseded readings in [from, to).
func (r *ReadingRepository) ListByNozzle(ctx context.Context, stationID string, key readings.NozzleKey, from, to time.Time) ([]readings.NozzleReading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT id, station_id, pump_id, nozzle_id, fuel_type,
	cumulative_volume, recorded_at, manual_entry, source_confidence,
	entered_by, supersedes_id, created_at
FROM %s r
WHERE station_id = $1 AND pump_id = $2 AND nozzle_id = $3
	AND recorded_at >= $4 AND recorded_at < $5
	AND NOT EXISTS (SELECT 1 FROM %s s WHERE s.supersedes_id = r.id)
ORDER BY recorded_at ASC, manual_entry ASC, created_at ASC`, r.table, r.table)

	rows, err := r.db.QueryContext(ctx, query, stationID, key.PumpID, key.NozzleID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []readings.NozzleReading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *reading)
	}
	return out, rows.Err()
}

// Delete removes a reading by id.
func (r *ReadingRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return readings.ErrReadingNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*readings.NozzleReading, error) {
	var reading readings.NozzleReading
	var supersedes sql.NullString
	if err := row.Scan(
		&reading.ID, &reading.StationID, &reading.PumpID, &reading.NozzleID, &reading.FuelType,
		&reading.CumulativeVolume, &reading.RecordedAt, &reading.ManualEntry, &reading.SourceConfidence,
		&reading.EnteredBy, &supersedes, &reading.CreatedAt,
	); err != nil {
		return nil, err
	}
	if supersedes.Valid {
		reading.SupersedesID = supersedes.String
	}
	return &reading, nil
}
