package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type ConfirmationRepo struct {
	db *sql.DB
}

func NewConfirmationRepo(db *sql.DB) *ConfirmationRepo {
	return &ConfirmationRepo{db: db}
}

// ReportExistsByHash reports whether a confirmation file with this content
// hash was already ingested.
func (r *ConfirmationRepo) ReportExistsByHash(hash string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM confirmation_reports WHERE file_hash = ?", hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check report hash: %w", err)
	}
	return count > 0, nil
}

func (r *ConfirmationRepo) InsertReport(rep *domain.ConfirmationReport) error {
	_, err := r.db.Exec(
		`INSERT INTO confirmation_reports (id, bank_id, file_hash, record_count, ingested_at)
		 VALUES (?,?,?,?,?)`,
		rep.ID, rep.BankID, rep.FileHash, rep.RecordCount,
		formatTime(rep.IngestedAt),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ConfirmationRepo) BulkInsert(confs []domain.Confirmation) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO confirmations
		(id, payout_id, bank_id, bank_reference, amount, currency, confirmed_at, report_id)
		VALUES (?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range confs {
		c := &confs[i]
		res, err := stmt.Exec(
			c.ID, c.PayoutID, c.BankID, c.BankReference, c.Amount, c.Currency,
			formatTime(c.ConfirmedAt), c.ReportID,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ExistsForPayout reports whether any confirmation is on record for a payout.
func (r *ConfirmationRepo) ExistsForPayout(payoutID string) (bool, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM confirmations WHERE payout_id = ?", payoutID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check confirmation: %w", err)
	}
	return count > 0, nil
}

func (r *ConfirmationRepo) ListForPayout(payoutID string) ([]domain.Confirmation, error) {
	rows, err := r.db.Query(
		`SELECT id, payout_id, bank_id, bank_reference, amount, currency, confirmed_at, report_id
		 FROM confirmations WHERE payout_id = ? ORDER BY confirmed_at DESC`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("query confirmations: %w", err)
	}
	defer rows.Close()

	var confs []domain.Confirmation
	for rows.Next() {
		var c domain.Confirmation
		var confirmedAt string
		if err := rows.Scan(&c.ID, &c.PayoutID, &c.BankID, &c.BankReference,
			&c.Amount, &c.Currency, &confirmedAt, &c.ReportID); err != nil {
			return nil, fmt.Errorf("scan confirmation: %w", err)
		}
		c.ConfirmedAt, _ = time.Parse(time.RFC3339, confirmedAt)
		confs = append(confs, c)
	}
	return confs, rows.Err()
}
