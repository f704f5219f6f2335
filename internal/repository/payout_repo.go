package repository

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type PayoutRepo struct {
	db *sql.DB
}

func NewPayoutRepo(db *sql.DB) *PayoutRepo {
	return &PayoutRepo{db: db}
}

func (r *PayoutRepo) Insert(p *domain.Payout) error {
	_, err := r.db.Exec(
		`INSERT OR IGNORE INTO payouts
		(id, status, amount, currency, country, created_at, processed_at)
		VALUES (?,?,?,?,?,?,?)`,
		p.ID, string(p.Status), p.Amount, p.Currency, p.Country,
		formatTime(p.CreatedAt), formatNullableTime(p.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

func (r *PayoutRepo) GetByID(id string) (*domain.Payout, error) {
	row := r.db.QueryRow(
		`SELECT id, status, amount, currency, country, created_at, processed_at
		 FROM payouts WHERE id = ?`, id)

	p, err := scanPayout(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// GetStuckSent returns up to limit payouts in 'sent' status processed at or
// before the cutoff with no confirmation on record. These are the failover
// sweep candidates.
func (r *PayoutRepo) GetStuckSent(cutoff time.Time, limit int) ([]domain.Payout, error) {
	rows, err := r.db.Query(
		`SELECT p.id, p.status, p.amount, p.currency, p.country, p.created_at, p.processed_at
		 FROM payouts p
		 LEFT JOIN confirmations c ON c.payout_id = p.id
		 WHERE p.status = ?
		   AND p.processed_at IS NOT NULL
		   AND p.processed_at <= ?
		   AND c.id IS NULL
		 LIMIT ?`,
		string(domain.PayoutSent), formatTime(cutoff), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query stuck payouts: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}

// MarkRerouted flips a payout from sent to rerouted. The status predicate is
// the row guard: only one of two overlapping sweeps can win, the other sees
// zero rows affected and must treat the payout as already handled.
func (r *PayoutRepo) MarkRerouted(tx *sql.Tx, id string) (bool, error) {
	res, err := tx.Exec(
		"UPDATE payouts SET status = ? WHERE id = ? AND status = ?",
		string(domain.PayoutRerouted), id, string(domain.PayoutSent),
	)
	if err != nil {
		return false, fmt.Errorf("mark rerouted: %w", err)
	}
	ra, _ := res.RowsAffected()
	return ra == 1, nil
}

// MarkSettled records bank confirmation of a payout.
func (r *PayoutRepo) MarkSettled(id string) error {
	_, err := r.db.Exec(
		"UPDATE payouts SET status = ? WHERE id = ?",
		string(domain.PayoutSettled), id,
	)
	if err != nil {
		return fmt.Errorf("mark settled: %w", err)
	}
	return nil
}

// Begin starts a transaction for per-candidate sweep isolation.
func (r *PayoutRepo) Begin() (*sql.Tx, error) {
	return r.db.Begin()
}

type PayoutFilter struct {
	Status   string
	Currency string
	Country  string
	Page     int
	Limit    int
}

func (r *PayoutRepo) List(f PayoutFilter) ([]domain.Payout, int, error) {
	where, args := buildPayoutWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM payouts"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	offset := (f.Page - 1) * f.Limit

	q := `SELECT id, status, amount, currency, country, created_at, processed_at
	      FROM payouts` + where + " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var payouts []domain.Payout
	for rows.Next() {
		p, err := scanPayout(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, total, rows.Err()
}

// DashboardStats holds aggregate payout statistics.
type DashboardStats struct {
	Total    int     `json:"total"`
	Sent     int     `json:"sent"`
	Rerouted int     `json:"rerouted"`
	Settled  int     `json:"settled"`
	Failed   int     `json:"failed"`
	Volume   float64 `json:"volume"`
}

func (r *PayoutRepo) GetDashboardStats() (*DashboardStats, error) {
	s := &DashboardStats{}
	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status='sent' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='rerouted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='settled' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status='failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(amount), 0)
		FROM payouts
	`).Scan(&s.Total, &s.Sent, &s.Rerouted, &s.Settled, &s.Failed, &s.Volume)
	return s, err
}

// --- helpers ---

func buildPayoutWhere(f PayoutFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.Currency != "" {
		clauses = append(clauses, "currency = ?")
		args = append(args, f.Currency)
	}
	if f.Country != "" {
		clauses = append(clauses, "country = ?")
		args = append(args, f.Country)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanPayout(scan func(...any) error) (*domain.Payout, error) {
	var p domain.Payout
	var status, createdAt string
	var processedAt sql.NullString

	if err := scan(&p.ID, &status, &p.Amount, &p.Currency, &p.Country,
		&createdAt, &processedAt); err != nil {
		return nil, err
	}

	p.Status = domain.PayoutStatus(status)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.ProcessedAt = parseNullableTime(processedAt)
	return &p, nil
}
