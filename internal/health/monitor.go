package health

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/molam/bankrouter/internal/alerts"
	"github.com/molam/bankrouter/internal/config"
	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/observability"
	"github.com/molam/bankrouter/internal/repository"
)

// Monitor keeps each active bank's risk score and circuit breaker state
// current. One instance per deployment: it is the single writer of
// BankProfile.riskScore.
type Monitor struct {
	cfg      config.Config
	banks    *repository.BankRepo
	health   *repository.HealthRepo
	breakers *repository.BreakerRepo
	recorder alerts.Recorder
	metrics  *observability.Metrics
	prober   *Prober
	log      zerolog.Logger

	now      func() time.Time
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewMonitor(
	cfg config.Config,
	banks *repository.BankRepo,
	health *repository.HealthRepo,
	breakers *repository.BreakerRepo,
	recorder alerts.Recorder,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Monitor {
	return &Monitor{
		cfg:      cfg,
		banks:    banks,
		health:   health,
		breakers: breakers,
		recorder: recorder,
		metrics:  metrics,
		prober:   NewProber(cfg.ProbeTimeout, cfg.SlowLatency),
		log:      log.With().Str("component", "health_monitor").Logger(),
		now:      time.Now,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the periodic probe loop.
func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.HealthInterval)
	go func() {
		defer ticker.Stop()
		defer close(m.doneChan)
		for {
			select {
			case <-ticker.C:
				m.RunHealthCycle(ctx)
			case <-m.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight cycle to finish.
func (m *Monitor) Stop() {
	close(m.stopChan)
	<-m.doneChan
}

// RunHealthCycle probes every active bank once and refreshes risk scores,
// rolling metrics, and breaker state. Bank evaluations are isolated: one
// bank's probe or storage error never prevents the rest of the cycle.
func (m *Monitor) RunHealthCycle(ctx context.Context) {
	start := m.now()

	banks, err := m.banks.ListActive()
	if err != nil {
		m.log.Error().Err(err).Msg("load active banks")
		return
	}

	for i := range banks {
		if err := m.evaluateBank(ctx, &banks[i]); err != nil {
			m.log.Error().Err(err).
				Str("bank_id", banks[i].ID).
				Msg("bank evaluation failed")
		}
	}

	m.metrics.CycleDuration.WithLabelValues("health").
		Observe(time.Since(start).Seconds())
	m.log.Debug().Int("banks", len(banks)).Msg("health cycle complete")
}

func (m *Monitor) evaluateBank(ctx context.Context, bank *domain.BankProfile) error {
	now := m.now()
	res := m.prober.Probe(ctx, bank.HealthCheckURL)
	m.metrics.ProbesTotal.WithLabelValues(bank.ID, string(res.Outcome)).Inc()

	// Risk moves by a policy step per outcome and stays clamped to [0,1].
	// Decay on success means a bank must sustain correct behaviour to be
	// trusted again, not merely answer once.
	risk := bank.RiskScore
	switch res.Outcome {
	case OutcomeSuccess:
		risk = clamp01(risk - m.cfg.RiskDecayStep)
	case OutcomeSlow:
		risk = clamp01(risk + m.cfg.RiskSlowStep)
	case OutcomeFailure:
		if res.StatusCode != 0 {
			risk = clamp01(risk + m.cfg.RiskFailureStep)
		} else {
			risk = clamp01(risk + m.cfg.RiskTimeoutStep)
		}
	}
	if err := m.banks.UpdateRiskScore(bank.ID, risk); err != nil {
		return errors.Wrap(err, "update risk score")
	}

	// One log entry per probe, unconditionally.
	entry := &domain.HealthLogEntry{
		ID:        uuid.NewString(),
		BankID:    bank.ID,
		Timestamp: now,
		LatencyMs: res.LatencyMs,
		Success:   res.Outcome != OutcomeFailure,
		Anomalies: res.Anomalies(),
	}
	if err := m.health.AppendLog(entry); err != nil {
		return errors.Wrap(err, "append health log")
	}

	stats, err := m.health.GetWindowStats(bank.ID, now.Add(-m.cfg.RollingWindow))
	if err != nil {
		return errors.Wrap(err, "window stats")
	}
	avgSuccess, avgLatency := stats.AvgSuccess, stats.AvgLatencyMs
	if stats.Samples == 0 {
		// Empty window: fall back to the just-observed sample.
		avgSuccess = 0
		if entry.Success {
			avgSuccess = 1
		}
		if res.LatencyMs != nil {
			avgLatency = float64(*res.LatencyMs)
		}
	}

	prevFailures := 0
	if prev, err := m.health.GetMetrics(bank.ID); err == nil && prev != nil {
		prevFailures = prev.RecentFailures
	}

	metrics := &domain.HealthMetrics{
		BankID:       bank.ID,
		LastChecked:  now,
		SuccessRate:  avgSuccess,
		AvgLatencyMs: avgLatency,
	}
	if res.Outcome == OutcomeFailure {
		metrics.LastError = res.Err
	}

	switch {
	case risk > m.cfg.FailoverRisk || avgSuccess < m.cfg.FailoverSuccess:
		metrics.Status = domain.HealthDown
		metrics.RecentFailures = prevFailures + 1

		if err := m.breakers.Open(bank.ID, now); err != nil {
			return errors.Wrap(err, "open breaker")
		}
		m.metrics.BreakerOpensTotal.WithLabelValues(bank.ID).Inc()
		m.recorder.RecordAlert("bank_health", bank.ID, domain.AlertCritical,
			"bank failed health evaluation, circuit opened",
			res.Anomalies())
		m.log.Warn().
			Str("bank_id", bank.ID).
			Float64("risk_score", risk).
			Float64("avg_success", avgSuccess).
			Msg("failover condition met, breaker open")

	case risk > m.cfg.DegradedRisk || avgSuccess < m.cfg.DegradedSuccess:
		metrics.Status = domain.HealthDegraded
		metrics.RecentFailures = 0
		m.recorder.RecordAlert("bank_health", bank.ID, domain.AlertWarning,
			"bank health degraded", res.Anomalies())
		m.log.Info().
			Str("bank_id", bank.ID).
			Float64("risk_score", risk).
			Float64("avg_success", avgSuccess).
			Msg("bank degraded")

	default:
		metrics.Status = domain.HealthHealthy
		metrics.RecentFailures = 0
	}

	if err := m.health.UpsertMetrics(metrics); err != nil {
		return errors.Wrap(err, "upsert metrics")
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
