package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	credit "fuelsync/internal/credit/domain"
)

const (
	defaultTransactionsTable = "credit_transactions"
	defaultSettlementsTable  = "settlements"
	defaultAllocationsTable  = "settlement_allocations"
)

// CreditRepository is a Postgres implementation of the credit ledger.
type CreditRepository struct {
	db                *sql.DB
	transactionsTable string
	settlementsTable  string
	allocationsTable  string
}

// NewCreditRepository constructs a repository.
func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{
		db:                db,
		transactionsTable: defaultTransactionsTable,
		settlementsTable:  defaultSettlementsTable,
		allocationsTable:  defaultAllocationsTable,
	}
}

// ListByCreditor returns ledger entries with allocations summed on.
func (r *CreditRepository) ListByCreditor(ctx context.Context, creditorID, stationID string) ([]credit.CreditTransaction, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("credit repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT t.id, t.creditor_id, t.station_id, t.amount, t.transaction_date, t.type, t.reference_number,
	COALESCE((SELECT SUM(a.amount) FROM %s a WHERE a.credit_transaction_id = t.id), 0)
FROM %s t
WHERE t.creditor_id = $1 AND t.station_id = $2
ORDER BY t.transaction_date ASC, t.id ASC`, r.allocationsTable, r.transactionsTable)

	rows, err := r.db.QueryContext(ctx, query, creditorID, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []credit.CreditTransaction
	for rows.Next() {
		var entry credit.CreditTransaction
		var entryType string
		var reference sql.NullString
		if err := rows.Scan(
			&entry.ID, &entry.CreditorID, &entry.StationID, &entry.Amount, &entry.TransactionDate,
			&entryType, &reference, &entry.Allocated,
		); err != nil {
			return nil, err
		}
		entry.Type = credit.TransactionType(entryType)
		if reference.Valid {
			entry.ReferenceNumber = reference.String
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ApplySettlement commits the settlement atomically. Credit rows are locked
// and re-checked inside the transaction so concurrent settlements cannot
// over-allocate; either every row is persisted or none are.
func (r *CreditRepository) ApplySettlement(ctx context.Context, settlement *credit.Settlement, allocations []credit.SettlementAllocation) error {
	if r == nil || r.db == nil {
		return errors.New("credit repo: nil db")
	}
	if settlement == nil {
		return errors.New("credit repo: nil settlement")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	lockQuery := fmt.Sprintf(`
SELECT amount,
	COALESCE((SELECT SUM(a.amount) FROM %s a WHERE a.credit_transaction_id = t.id), 0)
FROM %s t
WHERE t.id = $1 AND t.creditor_id = $2 AND t.station_id = $3 AND t.type = 'credit'
FOR UPDATE OF t`, r.allocationsTable, r.transactionsTable)

	pending := make(map[string]float64)
	for _, allocation := range allocations {
		var amount, allocated float64
		if err := tx.QueryRowContext(ctx, lockQuery, allocation.CreditTransactionID, settlement.CreditorID, settlement.StationID).
			Scan(&amount, &allocated); err != nil {
			_ = tx.Rollback()
			if errors.Is(err, sql.ErrNoRows) {
				return credit.ErrCreditNotFound
			}
			return err
		}
		pending[allocation.CreditTransactionID] += allocation.Amount
		if allocated+pending[allocation.CreditTransactionID] > amount {
			_ = tx.Rollback()
			return credit.ErrOverAllocation
		}
	}

	insertSettlement := fmt.Sprintf(`
INSERT INTO %s (id, creditor_id, station_id, amount, reference_number, settled_by, settled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, r.settlementsTable)
	if _, err := tx.ExecContext(ctx, insertSettlement,
		settlement.ID, settlement.CreditorID, settlement.StationID, settlement.Amount,
		settlement.ReferenceNumber, settlement.SettledBy, settlement.SettledAt,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	insertAllocation := fmt.Sprintf(`
INSERT INTO %s (settlement_id, credit_transaction_id, amount)
VALUES ($1,$2,$3)`, r.allocationsTable)
	for _, allocation := range allocations {
		if _, err := tx.ExecContext(ctx, insertAllocation,
			allocation.SettlementID, allocation.CreditTransactionID, allocation.Amount,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	// Mirror the settlement into the ledger.
	insertLedger := fmt.Sprintf(`
INSERT INTO %s (id, creditor_id, station_id, amount, transaction_date, type, reference_number)
VALUES ($1,$2,$3,$4,$5,'settlement',$6)`, r.transactionsTable)
	if _, err := tx.ExecContext(ctx, insertLedger,
		uuid.NewString(), settlement.CreditorID, settlement.StationID, settlement.Amount,
		settlement.SettledAt, settlement.ReferenceNumber,
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}
