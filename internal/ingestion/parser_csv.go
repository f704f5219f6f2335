package ingestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

// ParseConfirmationCSV parses the CSV confirmation format used by most
// settlement banks.
//
// Expected header:
//
//	payout_id,bank_reference,amount,currency,confirmed_at
func ParseConfirmationCSV(data []byte, reportID, bankID string) ([]domain.Confirmation, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 5 {
		return nil, fmt.Errorf("expected 5 columns, got %d", len(header))
	}

	var confs []domain.Confirmation
	lineNum := 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		if len(row) < 5 {
			continue
		}

		payoutID := strings.TrimSpace(row[0])
		reference := strings.TrimSpace(row[1])
		amountStr := strings.TrimSpace(row[2])
		curr := strings.TrimSpace(row[3])
		confirmedStr := strings.TrimSpace(row[4])

		amount, err := strconv.ParseFloat(amountStr, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d amount: %w", lineNum, err)
		}

		confirmedAt, err := time.Parse(time.RFC3339, confirmedStr)
		if err != nil {
			confirmedAt, err = time.Parse("2006-01-02", confirmedStr)
			if err != nil {
				return nil, fmt.Errorf("line %d date: %w", lineNum, err)
			}
		}

		confs = append(confs, domain.Confirmation{
			ID:            fmt.Sprintf("CONF-%s-%s", bankID, payoutID),
			PayoutID:      payoutID,
			BankID:        bankID,
			BankReference: reference,
			Amount:        amount,
			Currency:      curr,
			ConfirmedAt:   confirmedAt,
			ReportID:      reportID,
		})
	}

	return confs, nil
}
