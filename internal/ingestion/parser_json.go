package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

type jsonConfirmation struct {
	PayoutID      string  `json:"payout_id"`
	BankReference string  `json:"bank_reference"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	ConfirmedAt   string  `json:"confirmed_at"`
}

// ParseConfirmationJSON parses the JSON confirmation format (a top-level
// array of confirmation objects).
func ParseConfirmationJSON(data []byte, reportID, bankID string) ([]domain.Confirmation, error) {
	var rows []jsonConfirmation
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	var confs []domain.Confirmation
	for i, row := range rows {
		if row.PayoutID == "" {
			return nil, fmt.Errorf("record %d: missing payout_id", i)
		}
		confirmedAt, err := time.Parse(time.RFC3339, row.ConfirmedAt)
		if err != nil {
			return nil, fmt.Errorf("record %d confirmed_at: %w", i, err)
		}

		confs = append(confs, domain.Confirmation{
			ID:            fmt.Sprintf("CONF-%s-%s", bankID, row.PayoutID),
			PayoutID:      row.PayoutID,
			BankID:        bankID,
			BankReference: row.BankReference,
			Amount:        row.Amount,
			Currency:      row.Currency,
			ConfirmedAt:   confirmedAt,
			ReportID:      reportID,
		})
	}

	return confs, nil
}
