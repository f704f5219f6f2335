package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// InsertEntries writes a set of ledger rows atomically. Callers are expected
// to pass a balanced double-entry pair per instruction.
func (r *LedgerRepo) InsertEntries(entries []domain.LedgerEntry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO ledger_entries
		(id, instruction_id, payout_id, account, direction, amount_usd, currency, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range entries {
		e := &entries[i]
		if _, err := stmt.Exec(
			e.ID, e.InstructionID, e.PayoutID, e.Account, string(e.Direction),
			e.AmountUSD, e.Currency, formatTime(e.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *LedgerRepo) ListForInstruction(instructionID string) ([]domain.LedgerEntry, error) {
	rows, err := r.db.Query(
		`SELECT id, instruction_id, payout_id, account, direction, amount_usd, currency, created_at
		 FROM ledger_entries WHERE instruction_id = ? ORDER BY id`, instructionID)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var direction, createdAt string
		if err := rows.Scan(&e.ID, &e.InstructionID, &e.PayoutID, &e.Account,
			&direction, &e.AmountUSD, &e.Currency, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Direction = domain.LedgerDirection(direction)
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
