package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/molam/bankrouter/internal/currency"
	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/repository"
)

// Poster turns a settlement instruction into double-entry ledger rows.
type Poster interface {
	PostLedgerEntries(si *domain.SettlementInstruction) error
}

// StorePoster posts two balanced USD-normalized rows per instruction: a debit
// against settlement clearing and a credit against the bank payable account.
type StorePoster struct {
	repo *repository.LedgerRepo
	log  zerolog.Logger
}

func NewStorePoster(repo *repository.LedgerRepo, log zerolog.Logger) *StorePoster {
	return &StorePoster{repo: repo, log: log.With().Str("component", "ledger").Logger()}
}

func (p *StorePoster) PostLedgerEntries(si *domain.SettlementInstruction) error {
	usd, err := currency.ToUSD(si.Amount, si.Currency)
	if err != nil {
		return errors.Wrapf(err, "normalize %s", si.Currency)
	}

	now := time.Now()
	entries := []domain.LedgerEntry{
		{
			ID:            uuid.NewString(),
			InstructionID: si.ID,
			PayoutID:      si.PayoutID,
			Account:       domain.AccountSettlementClearing,
			Direction:     domain.LedgerDebit,
			AmountUSD:     usd,
			Currency:      si.Currency,
			CreatedAt:     now,
		},
		{
			ID:            uuid.NewString(),
			InstructionID: si.ID,
			PayoutID:      si.PayoutID,
			Account:       domain.AccountBankPayable,
			Direction:     domain.LedgerCredit,
			AmountUSD:     usd,
			Currency:      si.Currency,
			CreatedAt:     now,
		},
	}

	if err := p.repo.InsertEntries(entries); err != nil {
		return errors.Wrap(err, "post ledger entries")
	}

	p.log.Debug().
		Str("instruction_id", si.ID).
		Str("payout_id", si.PayoutID).
		Float64("amount_usd", usd).
		Msg("ledger entries posted")
	return nil
}
