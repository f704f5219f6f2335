package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type SettlementRepo struct {
	db *sql.DB
}

func NewSettlementRepo(db *sql.DB) *SettlementRepo {
	return &SettlementRepo{db: db}
}

// InsertInstruction creates a settlement instruction. Duplicate idempotency
// keys are ignored at the database level, so repeating a half-completed
// failover attempt never produces a second instruction for the same key.
func (r *SettlementRepo) InsertInstruction(tx *sql.Tx, si *domain.SettlementInstruction) (bool, error) {
	res, err := execer(tx, r.db)(
		`INSERT OR IGNORE INTO settlement_instructions
		(id, payout_id, bank_id, amount, currency, rail, status, idempotency_key, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		si.ID, si.PayoutID, si.BankID, si.Amount, si.Currency,
		string(si.Rail), string(si.Status), si.IdempotencyKey,
		formatTime(si.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert instruction: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra == 1, nil
}

func (r *SettlementRepo) ListForPayout(payoutID string) ([]domain.SettlementInstruction, error) {
	rows, err := r.db.Query(
		`SELECT id, payout_id, bank_id, amount, currency, rail, status, idempotency_key, created_at
		 FROM settlement_instructions
		 WHERE payout_id = ?
		 ORDER BY created_at DESC, id DESC`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("query instructions: %w", err)
	}
	defer rows.Close()

	var instructions []domain.SettlementInstruction
	for rows.Next() {
		si, err := scanInstruction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan instruction: %w", err)
		}
		instructions = append(instructions, *si)
	}
	return instructions, rows.Err()
}

func (r *SettlementRepo) CountForPayout(payoutID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM settlement_instructions WHERE payout_id = ?", payoutID,
	).Scan(&count)
	return count, err
}

func scanInstruction(scan func(...any) error) (*domain.SettlementInstruction, error) {
	var si domain.SettlementInstruction
	var rail, status, createdAt string

	if err := scan(&si.ID, &si.PayoutID, &si.BankID, &si.Amount, &si.Currency,
		&rail, &status, &si.IdempotencyKey, &createdAt); err != nil {
		return nil, err
	}

	si.Rail = domain.Rail(rail)
	si.Status = domain.InstructionStatus(status)
	si.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &si, nil
}
