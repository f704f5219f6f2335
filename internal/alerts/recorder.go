package alerts

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/repository"
)

// Recorder accepts operator alerts. Implementations must never propagate
// failures to the caller: a lost alert is logged, not retried, and never
// breaks a health or failover cycle.
type Recorder interface {
	RecordAlert(alertType, entityID string, severity domain.AlertSeverity, message, metadata string)
}

// StoreRecorder persists alerts to the alerts table.
type StoreRecorder struct {
	repo *repository.AlertRepo
	log  zerolog.Logger
}

func NewStoreRecorder(repo *repository.AlertRepo, log zerolog.Logger) *StoreRecorder {
	return &StoreRecorder{repo: repo, log: log.With().Str("component", "alerts").Logger()}
}

func (r *StoreRecorder) RecordAlert(alertType, entityID string, severity domain.AlertSeverity, message, metadata string) {
	a := &domain.Alert{
		ID:        uuid.NewString(),
		Type:      alertType,
		EntityID:  entityID,
		Severity:  severity,
		Message:   message,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if err := r.repo.Insert(a); err != nil {
		r.log.Error().Err(err).
			Str("type", alertType).
			Str("entity_id", entityID).
			Msg("failed to record alert")
		return
	}
	r.log.Debug().
		Str("type", alertType).
		Str("entity_id", entityID).
		Str("severity", string(severity)).
		Msg("alert recorded")
}
