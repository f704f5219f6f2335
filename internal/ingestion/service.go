package ingestion

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/events"
	"github.com/molam/bankrouter/internal/repository"
)

// IngestResult is returned from a successful ingestion.
type IngestResult struct {
	ReportID          string `json:"report_id"`
	RecordsIngested   int    `json:"records_ingested"`
	DuplicatesSkipped int    `json:"duplicates_skipped"`
	PayoutsSettled    int    `json:"payouts_settled"`
}

// Service ingests settlement confirmation reports delivered by banks. A
// confirmed payout leaves the failover sweeper's candidate set and is marked
// settled.
type Service struct {
	confirmations *repository.ConfirmationRepo
	payouts       *repository.PayoutRepo
	publisher     events.Publisher
	log           zerolog.Logger
}

func NewService(
	confirmations *repository.ConfirmationRepo,
	payouts *repository.PayoutRepo,
	publisher events.Publisher,
	log zerolog.Logger,
) *Service {
	return &Service{
		confirmations: confirmations,
		payouts:       payouts,
		publisher:     publisher,
		log:           log.With().Str("component", "ingestion").Logger(),
	}
}

// IngestReport parses a confirmation file and stores the records.
//
// format must be one of: csv, json
func (s *Service) IngestReport(data []byte, bankID, format string) (*IngestResult, error) {
	// Idempotency check via file hash.
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.confirmations.ReportExistsByHash(hash)
	if err != nil {
		return nil, fmt.Errorf("check hash: %w", err)
	}
	if exists {
		return &IngestResult{ReportID: "already-ingested"}, nil
	}

	reportID := fmt.Sprintf("RPT-%s-%d", bankID, time.Now().UnixNano())

	var confs []domain.Confirmation
	switch format {
	case "csv":
		confs, err = ParseConfirmationCSV(data, reportID, bankID)
	case "json":
		confs, err = ParseConfirmationJSON(data, reportID, bankID)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", format, err)
	}

	report := &domain.ConfirmationReport{
		ID:          reportID,
		BankID:      bankID,
		FileHash:    hash,
		RecordCount: len(confs),
		IngestedAt:  time.Now(),
	}
	if err := s.confirmations.InsertReport(report); err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	inserted, err := s.confirmations.BulkInsert(confs)
	if err != nil {
		return nil, fmt.Errorf("insert confirmations: %w", err)
	}

	// Flip confirmed payouts to settled. A missing payout id is a bank-side
	// reference we don't know; logged and skipped.
	settled := 0
	for i := range confs {
		c := &confs[i]
		p, err := s.payouts.GetByID(c.PayoutID)
		if err != nil {
			s.log.Warn().Err(err).Str("payout_id", c.PayoutID).Msg("lookup payout")
			continue
		}
		if p == nil {
			s.log.Warn().
				Str("payout_id", c.PayoutID).
				Str("bank_id", bankID).
				Msg("confirmation references unknown payout")
			continue
		}
		if err := s.payouts.MarkSettled(c.PayoutID); err != nil {
			s.log.Warn().Err(err).Str("payout_id", c.PayoutID).Msg("mark settled")
			continue
		}
		s.publisher.PublishEvent("payout", c.PayoutID, "payout.settled", map[string]string{
			"payout_id":      c.PayoutID,
			"bank_id":        bankID,
			"bank_reference": c.BankReference,
		})
		settled++
	}

	s.log.Info().
		Str("report_id", reportID).
		Str("bank_id", bankID).
		Int("records", len(confs)).
		Int("new", inserted).
		Int("settled", settled).
		Msg("confirmation report ingested")

	return &IngestResult{
		ReportID:          reportID,
		RecordsIngested:   inserted,
		DuplicatesSkipped: len(confs) - inserted,
		PayoutsSettled:    settled,
	}, nil
}
