package domain

import "time"

type LedgerDirection string

const (
	LedgerDebit  LedgerDirection = "debit"
	LedgerCredit LedgerDirection = "credit"
)

// Ledger account codes used by settlement posting.
const (
	AccountSettlementClearing = "settlement_clearing"
	AccountBankPayable        = "bank_payable"
)

// LedgerEntry is one side of a double-entry posting. Entries for a single
// settlement instruction always balance to zero.
type LedgerEntry struct {
	ID            string          `json:"id"`
	InstructionID string          `json:"instruction_id"`
	PayoutID      string          `json:"payout_id"`
	Account       string          `json:"account"`
	Direction     LedgerDirection `json:"direction"`
	AmountUSD     float64         `json:"amount_usd"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

// Alert is an operator-facing notification raised by the health monitor or
// the failover sweeper.
type Alert struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	EntityID  string        `json:"entity_id"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Metadata  string        `json:"metadata,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
