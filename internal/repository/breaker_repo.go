package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

// BreakerRepo is the authoritative open/closed circuit state per bank.
type BreakerRepo struct {
	db *sql.DB
}

func NewBreakerRepo(db *sql.DB) *BreakerRepo {
	return &BreakerRepo{db: db}
}

// Open trips the breaker for a bank. Idempotent: a first open inserts the row
// with openedAt=now and failureCount=1; subsequent opens keep the original
// openedAt and increment failureCount. A merge write is used so a concurrent
// operator close is never blindly overwritten.
func (r *BreakerRepo) Open(bankID string, now time.Time) error {
	_, err := r.db.Exec(
		`INSERT INTO circuit_breakers (bank_id, state, opened_at, failure_count)
		 VALUES (?,?,?,1)
		 ON CONFLICT(bank_id) DO UPDATE SET
			state = ?,
			opened_at = COALESCE(circuit_breakers.opened_at, excluded.opened_at),
			failure_count = circuit_breakers.failure_count + 1`,
		bankID, string(domain.BreakerOpen), formatTime(now),
		string(domain.BreakerOpen),
	)
	if err != nil {
		return fmt.Errorf("open breaker: %w", err)
	}
	return nil
}

// Close resets the breaker to closed. There is no automatic close transition;
// this is the operator path. The opened_at timestamp is cleared so a later
// re-open records a fresh incident start.
func (r *BreakerRepo) Close(bankID string) error {
	res, err := r.db.Exec(
		`UPDATE circuit_breakers SET state = ?, opened_at = NULL, failure_count = 0
		 WHERE bank_id = ?`,
		string(domain.BreakerClosed), bankID,
	)
	if err != nil {
		return fmt.Errorf("close breaker: %w", err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// IsOpen reports whether the bank's circuit is open. A missing row means the
// breaker has never tripped and counts as closed.
func (r *BreakerRepo) IsOpen(bankID string) (bool, error) {
	var state string
	err := r.db.QueryRow(
		"SELECT state FROM circuit_breakers WHERE bank_id = ?", bankID,
	).Scan(&state)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read breaker: %w", err)
	}
	return state == string(domain.BreakerOpen), nil
}

func (r *BreakerRepo) Get(bankID string) (*domain.CircuitBreaker, error) {
	row := r.db.QueryRow(
		`SELECT bank_id, state, opened_at, failure_count
		 FROM circuit_breakers WHERE bank_id = ?`, bankID)

	cb, err := scanBreaker(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cb, err
}

func (r *BreakerRepo) List() ([]domain.CircuitBreaker, error) {
	rows, err := r.db.Query(
		`SELECT bank_id, state, opened_at, failure_count
		 FROM circuit_breakers ORDER BY bank_id`)
	if err != nil {
		return nil, fmt.Errorf("query breakers: %w", err)
	}
	defer rows.Close()

	var breakers []domain.CircuitBreaker
	for rows.Next() {
		cb, err := scanBreaker(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan breaker: %w", err)
		}
		breakers = append(breakers, *cb)
	}
	return breakers, rows.Err()
}

func scanBreaker(scan func(...any) error) (*domain.CircuitBreaker, error) {
	var cb domain.CircuitBreaker
	var state string
	var openedAt sql.NullString

	if err := scan(&cb.BankID, &state, &openedAt, &cb.FailureCount); err != nil {
		return nil, err
	}

	cb.State = domain.BreakerState(state)
	cb.OpenedAt = parseNullableTime(openedAt)
	return &cb, nil
}
