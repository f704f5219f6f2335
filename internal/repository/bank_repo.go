package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type BankRepo struct {
	db *sql.DB
}

func NewBankRepo(db *sql.DB) *BankRepo {
	return &BankRepo{db: db}
}

func (r *BankRepo) Insert(b *domain.BankProfile) error {
	currencies, err := json.Marshal(b.Currencies)
	if err != nil {
		return fmt.Errorf("marshal currencies: %w", err)
	}
	rails, err := json.Marshal(b.Rails)
	if err != nil {
		return fmt.Errorf("marshal rails: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT OR IGNORE INTO banks
		(id, name, status, risk_score, health_check_url, currencies, rails, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		b.ID, b.Name, string(b.Status), b.RiskScore, b.HealthCheckURL,
		string(currencies), string(rails), formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert bank: %w", err)
	}
	return nil
}

func (r *BankRepo) BulkInsert(banks []domain.BankProfile) (int, error) {
	inserted := 0
	sqlTx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	stmt, err := sqlTx.Prepare(
		`INSERT OR IGNORE INTO banks
		(id, name, status, risk_score, health_check_url, currencies, rails, created_at)
		VALUES (?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range banks {
		b := &banks[i]
		currencies, err := json.Marshal(b.Currencies)
		if err != nil {
			return inserted, fmt.Errorf("marshal currencies %d: %w", i, err)
		}
		rails, err := json.Marshal(b.Rails)
		if err != nil {
			return inserted, fmt.Errorf("marshal rails %d: %w", i, err)
		}
		res, err := stmt.Exec(
			b.ID, b.Name, string(b.Status), b.RiskScore, b.HealthCheckURL,
			string(currencies), string(rails), formatTime(b.CreatedAt),
		)
		if err != nil {
			return inserted, fmt.Errorf("insert row %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

func (r *BankRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM banks").Scan(&count)
	return count, err
}

func (r *BankRepo) GetByID(id string) (*domain.BankProfile, error) {
	row := r.db.QueryRow(
		`SELECT id, name, status, risk_score, health_check_url, currencies, rails, created_at
		 FROM banks WHERE id = ?`, id)
	return scanBank(row.Scan)
}

// ListActive returns all banks with status=active, the probe population of
// one health cycle.
func (r *BankRepo) ListActive() ([]domain.BankProfile, error) {
	return r.list("WHERE status = ?", string(domain.BankActive))
}

func (r *BankRepo) ListAll() ([]domain.BankProfile, error) {
	return r.list("")
}

func (r *BankRepo) list(where string, args ...any) ([]domain.BankProfile, error) {
	rows, err := r.db.Query(
		`SELECT id, name, status, risk_score, health_check_url, currencies, rails, created_at
		 FROM banks `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query banks: %w", err)
	}
	defer rows.Close()

	var banks []domain.BankProfile
	for rows.Next() {
		b, err := scanBank(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		banks = append(banks, *b)
	}
	return banks, rows.Err()
}

// UpdateRiskScore persists a new risk score. The caller is responsible for
// clamping to [0,1]; the single health monitor instance is the only writer.
func (r *BankRepo) UpdateRiskScore(id string, score float64) error {
	_, err := r.db.Exec("UPDATE banks SET risk_score = ? WHERE id = ?", score, id)
	if err != nil {
		return fmt.Errorf("update risk score: %w", err)
	}
	return nil
}

// UpdateStatus flips a bank between active and inactive (operator action).
func (r *BankRepo) UpdateStatus(id string, status domain.BankStatus) error {
	res, err := r.db.Exec("UPDATE banks SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return fmt.Errorf("update bank status: %w", err)
	}
	ra, _ := res.RowsAffected()
	if ra == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanBank(scan func(...any) error) (*domain.BankProfile, error) {
	var b domain.BankProfile
	var status, currencies, rails, createdAt string

	if err := scan(&b.ID, &b.Name, &status, &b.RiskScore, &b.HealthCheckURL,
		&currencies, &rails, &createdAt); err != nil {
		return nil, err
	}

	b.Status = domain.BankStatus(status)
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if err := json.Unmarshal([]byte(currencies), &b.Currencies); err != nil {
		return nil, fmt.Errorf("unmarshal currencies: %w", err)
	}
	if err := json.Unmarshal([]byte(rails), &b.Rails); err != nil {
		return nil, fmt.Errorf("unmarshal rails: %w", err)
	}
	return &b, nil
}
