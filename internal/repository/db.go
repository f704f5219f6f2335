package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS banks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			risk_score REAL NOT NULL DEFAULT 0,
			health_check_url TEXT NOT NULL,
			currencies TEXT NOT NULL,
			rails TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_banks_status ON banks(status)`,

		`CREATE TABLE IF NOT EXISTS health_log (
			id TEXT PRIMARY KEY,
			bank_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			latency_ms INTEGER,
			success INTEGER NOT NULL,
			anomalies TEXT,
			FOREIGN KEY (bank_id) REFERENCES banks(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_log_bank_ts ON health_log(bank_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS health_metrics (
			bank_id TEXT PRIMARY KEY,
			last_checked DATETIME NOT NULL,
			status TEXT NOT NULL,
			success_rate REAL NOT NULL,
			avg_latency_ms REAL NOT NULL,
			recent_failures INTEGER NOT NULL DEFAULT 0,
			last_error TEXT,
			FOREIGN KEY (bank_id) REFERENCES banks(id)
		)`,

		`CREATE TABLE IF NOT EXISTS circuit_breakers (
			bank_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			opened_at DATETIME,
			failure_count INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (bank_id) REFERENCES banks(id)
		)`,

		`CREATE TABLE IF NOT EXISTS payouts (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			country TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			processed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payouts_processed_at ON payouts(processed_at)`,

		`CREATE TABLE IF NOT EXISTS routing_decisions (
			id TEXT PRIMARY KEY,
			payout_id TEXT NOT NULL,
			chosen_bank_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			idempotency_key TEXT UNIQUE NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (payout_id) REFERENCES payouts(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_routing_decisions_payout ON routing_decisions(payout_id)`,

		`CREATE TABLE IF NOT EXISTS settlement_instructions (
			id TEXT PRIMARY KEY,
			payout_id TEXT NOT NULL,
			bank_id TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			rail TEXT NOT NULL,
			status TEXT NOT NULL,
			idempotency_key TEXT UNIQUE NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (payout_id) REFERENCES payouts(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instructions_payout ON settlement_instructions(payout_id)`,

		`CREATE TABLE IF NOT EXISTS confirmations (
			id TEXT PRIMARY KEY,
			payout_id TEXT NOT NULL,
			bank_id TEXT NOT NULL,
			bank_reference TEXT NOT NULL,
			amount REAL NOT NULL,
			currency TEXT NOT NULL,
			confirmed_at DATETIME NOT NULL,
			report_id TEXT NOT NULL,
			FOREIGN KEY (payout_id) REFERENCES payouts(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_confirmations_payout ON confirmations(payout_id)`,

		`CREATE TABLE IF NOT EXISTS confirmation_reports (
			id TEXT PRIMARY KEY,
			bank_id TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			record_count INTEGER NOT NULL,
			ingested_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			instruction_id TEXT NOT NULL,
			payout_id TEXT NOT NULL,
			account TEXT NOT NULL,
			direction TEXT NOT NULL,
			amount_usd REAL NOT NULL,
			currency TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_instruction ON ledger_entries(instruction_id)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_entity ON alerts(entity_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:60], err)
		}
	}

	return nil
}

// --- shared helpers ---

// formatTime normalizes to UTC before formatting so stored timestamps compare
// correctly as strings regardless of the process timezone.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
