package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type HealthRepo struct {
	db *sql.DB
}

func NewHealthRepo(db *sql.DB) *HealthRepo {
	return &HealthRepo{db: db}
}

// AppendLog writes one immutable probe observation. The log is append-only;
// pruning is an external retention concern.
func (r *HealthRepo) AppendLog(e *domain.HealthLogEntry) error {
	var latency any
	if e.LatencyMs != nil {
		latency = *e.LatencyMs
	}
	success := 0
	if e.Success {
		success = 1
	}

	_, err := r.db.Exec(
		`INSERT INTO health_log (id, bank_id, timestamp, latency_ms, success, anomalies)
		 VALUES (?,?,?,?,?,?)`,
		e.ID, e.BankID, formatTime(e.Timestamp), latency, success, e.Anomalies,
	)
	if err != nil {
		return fmt.Errorf("append health log: %w", err)
	}
	return nil
}

// WindowStats holds rolling statistics over the trailing window.
type WindowStats struct {
	Samples      int
	AvgSuccess   float64
	AvgLatencyMs float64
}

// GetWindowStats computes simple averages over the bank's health log entries
// newer than `since`. Latency averages only rows where a response was
// received. Samples==0 means the window is empty and the caller should fall
// back to the just-observed probe.
func (r *HealthRepo) GetWindowStats(bankID string, since time.Time) (*WindowStats, error) {
	var s WindowStats
	err := r.db.QueryRow(
		`SELECT COUNT(*),
		        COALESCE(AVG(success), 0),
		        COALESCE(AVG(latency_ms), 0)
		 FROM health_log
		 WHERE bank_id = ? AND timestamp >= ?`,
		bankID, formatTime(since),
	).Scan(&s.Samples, &s.AvgSuccess, &s.AvgLatencyMs)
	if err != nil {
		return nil, fmt.Errorf("window stats: %w", err)
	}
	return &s, nil
}

// CountLogs returns the number of health log rows for a bank.
func (r *HealthRepo) CountLogs(bankID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM health_log WHERE bank_id = ?", bankID,
	).Scan(&count)
	return count, err
}

// UpsertMetrics replaces the bank's operational snapshot with the result of
// the latest probe cycle.
func (r *HealthRepo) UpsertMetrics(m *domain.HealthMetrics) error {
	_, err := r.db.Exec(
		`INSERT INTO health_metrics
		 (bank_id, last_checked, status, success_rate, avg_latency_ms, recent_failures, last_error)
		 VALUES (?,?,?,?,?,?,?)
		 ON CONFLICT(bank_id) DO UPDATE SET
			last_checked = excluded.last_checked,
			status = excluded.status,
			success_rate = excluded.success_rate,
			avg_latency_ms = excluded.avg_latency_ms,
			recent_failures = excluded.recent_failures,
			last_error = excluded.last_error`,
		m.BankID, formatTime(m.LastChecked), string(m.Status),
		m.SuccessRate, m.AvgLatencyMs, m.RecentFailures, m.LastError,
	)
	if err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
	return nil
}

func (r *HealthRepo) GetMetrics(bankID string) (*domain.HealthMetrics, error) {
	row := r.db.QueryRow(
		`SELECT bank_id, last_checked, status, success_rate, avg_latency_ms, recent_failures, last_error
		 FROM health_metrics WHERE bank_id = ?`, bankID)

	m, err := scanMetrics(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

func (r *HealthRepo) ListMetrics() ([]domain.HealthMetrics, error) {
	rows, err := r.db.Query(
		`SELECT bank_id, last_checked, status, success_rate, avg_latency_ms, recent_failures, last_error
		 FROM health_metrics ORDER BY bank_id`)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []domain.HealthMetrics
	for rows.Next() {
		m, err := scanMetrics(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan metrics: %w", err)
		}
		metrics = append(metrics, *m)
	}
	return metrics, rows.Err()
}

func scanMetrics(scan func(...any) error) (*domain.HealthMetrics, error) {
	var m domain.HealthMetrics
	var status, lastChecked string
	var lastError sql.NullString

	if err := scan(&m.BankID, &lastChecked, &status, &m.SuccessRate,
		&m.AvgLatencyMs, &m.RecentFailures, &lastError); err != nil {
		return nil, err
	}

	m.Status = domain.HealthStatus(status)
	m.LastChecked, _ = time.Parse(time.RFC3339, lastChecked)
	if lastError.Valid {
		m.LastError = lastError.String
	}
	return &m, nil
}
