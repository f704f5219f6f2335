package domain

import "time"

type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutSent     PayoutStatus = "sent"
	PayoutRerouted PayoutStatus = "rerouted"
	PayoutSettled  PayoutStatus = "settled"
	PayoutFailed   PayoutStatus = "failed"
)

// Payout is an outbound money transfer. The resilience engine only reads
// status/processed_at to find stuck payouts and writes status=rerouted; all
// other lifecycle transitions belong to the dispatch path.
type Payout struct {
	ID          string       `json:"id"`
	Status      PayoutStatus `json:"status"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Country     string       `json:"country"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// RoutingDecision is the recorded choice of settlement bank for a payout.
// Decisions are append-only: every initial and failover choice adds a row,
// forming the routing audit trail. Never updated.
type RoutingDecision struct {
	ID             string    `json:"id"`
	PayoutID       string    `json:"payout_id"`
	ChosenBankID   string    `json:"chosen_bank_id"`
	Reason         string    `json:"reason"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}

type InstructionStatus string

const (
	InstructionPending InstructionStatus = "pending"
)

// SettlementInstruction hands a payout off to the bank-transfer execution
// path. The idempotency key makes creation safe to repeat.
type SettlementInstruction struct {
	ID             string            `json:"id"`
	PayoutID       string            `json:"payout_id"`
	BankID         string            `json:"bank_id"`
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	Rail           Rail              `json:"rail"`
	Status         InstructionStatus `json:"status"`
	IdempotencyKey string            `json:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Confirmation records that a bank acknowledged settlement of a payout. A
// payout with a confirmation is never a failover candidate.
type Confirmation struct {
	ID            string    `json:"id"`
	PayoutID      string    `json:"payout_id"`
	BankID        string    `json:"bank_id"`
	BankReference string    `json:"bank_reference"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
	ReportID      string    `json:"report_id"`
}

// ConfirmationReport is the metadata of one ingested confirmation file,
// hash-deduplicated so re-uploads are no-ops.
type ConfirmationReport struct {
	ID          string    `json:"id"`
	BankID      string    `json:"bank_id"`
	FileHash    string    `json:"file_hash"`
	RecordCount int       `json:"record_count"`
	IngestedAt  time.Time `json:"ingested_at"`
}
