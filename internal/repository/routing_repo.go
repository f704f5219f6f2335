package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

// RoutingRepo stores the append-only routing decision audit trail.
type RoutingRepo struct {
	db *sql.DB
}

func NewRoutingRepo(db *sql.DB) *RoutingRepo {
	return &RoutingRepo{db: db}
}

// Insert appends a routing decision. The UNIQUE idempotency key makes a
// repeated failover attempt for the same stuck payout a no-op; the return
// value reports whether a row was actually written.
func (r *RoutingRepo) Insert(tx *sql.Tx, d *domain.RoutingDecision) (bool, error) {
	res, err := execer(tx, r.db)(
		`INSERT OR IGNORE INTO routing_decisions
		(id, payout_id, chosen_bank_id, reason, idempotency_key, created_at)
		VALUES (?,?,?,?,?,?)`,
		d.ID, d.PayoutID, d.ChosenBankID, d.Reason, d.IdempotencyKey,
		formatTime(d.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert decision: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra == 1, nil
}

// GetLatestForPayout returns the most recent routing decision for a payout,
// or nil when the payout has no routing history.
func (r *RoutingRepo) GetLatestForPayout(payoutID string) (*domain.RoutingDecision, error) {
	row := r.db.QueryRow(
		`SELECT id, payout_id, chosen_bank_id, reason, idempotency_key, created_at
		 FROM routing_decisions
		 WHERE payout_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, payoutID)

	d, err := scanDecision(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// ListForPayout returns the full routing history, newest first.
func (r *RoutingRepo) ListForPayout(payoutID string) ([]domain.RoutingDecision, error) {
	rows, err := r.db.Query(
		`SELECT id, payout_id, chosen_bank_id, reason, idempotency_key, created_at
		 FROM routing_decisions
		 WHERE payout_id = ?
		 ORDER BY created_at DESC, id DESC`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []domain.RoutingDecision
	for rows.Next() {
		d, err := scanDecision(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		decisions = append(decisions, *d)
	}
	return decisions, rows.Err()
}

func (r *RoutingRepo) CountForPayout(payoutID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM routing_decisions WHERE payout_id = ?", payoutID,
	).Scan(&count)
	return count, err
}

func scanDecision(scan func(...any) error) (*domain.RoutingDecision, error) {
	var d domain.RoutingDecision
	var createdAt string

	if err := scan(&d.ID, &d.PayoutID, &d.ChosenBankID, &d.Reason,
		&d.IdempotencyKey, &createdAt); err != nil {
		return nil, err
	}

	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &d, nil
}

// execer picks the transaction when one is supplied, the pool otherwise.
func execer(tx *sql.Tx, db *sql.DB) func(string, ...any) (sql.Result, error) {
	if tx != nil {
		return tx.Exec
	}
	return db.Exec
}
