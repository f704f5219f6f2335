package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type AlertRepo struct {
	db *sql.DB
}

func NewAlertRepo(db *sql.DB) *AlertRepo {
	return &AlertRepo{db: db}
}

func (r *AlertRepo) Insert(a *domain.Alert) error {
	_, err := r.db.Exec(
		`INSERT INTO alerts (id, type, entity_id, severity, message, metadata, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Type, a.EntityID, string(a.Severity), a.Message, a.Metadata,
		formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

type AlertFilter struct {
	EntityID string
	Severity string
	Limit    int
}

func (r *AlertRepo) List(f AlertFilter) ([]domain.Alert, error) {
	q := `SELECT id, type, entity_id, severity, message, metadata, created_at FROM alerts`
	var args []any
	where := ""
	if f.EntityID != "" {
		where = " WHERE entity_id = ?"
		args = append(args, f.EntityID)
	}
	if f.Severity != "" {
		if where == "" {
			where = " WHERE severity = ?"
		} else {
			where += " AND severity = ?"
		}
		args = append(args, f.Severity)
	}
	if f.Limit <= 0 {
		f.Limit = 100
	}
	q += where + " ORDER BY created_at DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var severity, createdAt string
		var metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.Type, &a.EntityID, &severity,
			&a.Message, &metadata, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Severity = domain.AlertSeverity(severity)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if metadata.Valid {
			a.Metadata = metadata.String
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
