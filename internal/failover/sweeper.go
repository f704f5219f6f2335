package failover

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/molam/bankrouter/internal/config"
	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/events"
	"github.com/molam/bankrouter/internal/ledger"
	"github.com/molam/bankrouter/internal/observability"
	"github.com/molam/bankrouter/internal/repository"
	"github.com/molam/bankrouter/internal/routing"
)

// RouteSelector is the routing capability the sweeper consumes. It never
// depends on the selector's concrete type.
type RouteSelector interface {
	SelectRoute(p *domain.Payout, excludedBankIDs []string) (*domain.RoutingDecision, error)
}

// CircuitBreakerReader answers whether a bank's circuit is open.
type CircuitBreakerReader interface {
	IsOpen(bankID string) (bool, error)
}

// Sweeper detects payouts whose dispatch has stalled behind a breaker-open
// bank and reroutes them to a healthy alternate.
type Sweeper struct {
	cfg         config.Config
	payouts     *repository.PayoutRepo
	decisions   *repository.RoutingRepo
	settlements *repository.SettlementRepo
	breakers    CircuitBreakerReader
	selector    RouteSelector
	poster      ledger.Poster
	publisher   events.Publisher
	metrics     *observability.Metrics
	log         zerolog.Logger

	now      func() time.Time
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewSweeper(
	cfg config.Config,
	payouts *repository.PayoutRepo,
	decisions *repository.RoutingRepo,
	settlements *repository.SettlementRepo,
	breakers CircuitBreakerReader,
	selector RouteSelector,
	poster ledger.Poster,
	publisher events.Publisher,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *Sweeper {
	return &Sweeper{
		cfg:         cfg,
		payouts:     payouts,
		decisions:   decisions,
		settlements: settlements,
		breakers:    breakers,
		selector:    selector,
		poster:      poster,
		publisher:   publisher,
		metrics:     metrics,
		log:         log.With().Str("component", "failover_sweeper").Logger(),
		now:         time.Now,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
}

// Start launches the periodic sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		defer close(s.doneChan)
		for {
			select {
			case <-ticker.C:
				s.RunFailoverSweep(ctx)
			case <-s.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

// RunFailoverSweep processes one batch of stuck payouts. Candidates are
// isolated: an error on one payout is logged and the sweep continues. A
// payout skipped this cycle stays 'sent' and is naturally re-selected by the
// next cycle's query.
func (s *Sweeper) RunFailoverSweep(ctx context.Context) {
	start := s.now()
	cutoff := start.Add(-s.cfg.StuckTimeout)

	candidates, err := s.payouts.GetStuckSent(cutoff, s.cfg.SweepBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("query stuck payouts")
		return
	}

	rerouted := 0
	for i := range candidates {
		select {
		case <-ctx.Done():
			return
		default:
		}
		ok, err := s.processCandidate(&candidates[i])
		if err != nil {
			s.log.Error().Err(err).
				Str("payout_id", candidates[i].ID).
				Msg("failover candidate failed")
			continue
		}
		if ok {
			rerouted++
		}
	}

	s.metrics.CycleDuration.WithLabelValues("sweep").
		Observe(time.Since(start).Seconds())
	if len(candidates) > 0 {
		s.log.Info().
			Int("candidates", len(candidates)).
			Int("rerouted", rerouted).
			Msg("failover sweep complete")
	}
}

// processCandidate reroutes a single stuck payout. Returns true when the
// payout was rerouted, false when it was skipped.
func (s *Sweeper) processCandidate(p *domain.Payout) (bool, error) {
	last, err := s.decisions.GetLatestForPayout(p.ID)
	if err != nil {
		return false, errors.Wrap(err, "load routing history")
	}
	if last == nil {
		// Cannot determine which bank to blame. Data-integrity problem for
		// an operator, not for this component.
		s.metrics.SweepSkipsTotal.WithLabelValues("no_history").Inc()
		s.log.Warn().
			Str("payout_id", p.ID).
			Msg("stuck payout has no routing history, leaving untouched")
		return false, nil
	}

	open, err := s.breakers.IsOpen(last.ChosenBankID)
	if err != nil {
		return false, errors.Wrap(err, "read breaker state")
	}
	if !open {
		// The stall is not attributable to bank failure the system knows
		// about; rerouting would be guesswork.
		s.metrics.SweepSkipsTotal.WithLabelValues("breaker_closed").Inc()
		s.log.Debug().
			Str("payout_id", p.ID).
			Str("bank_id", last.ChosenBankID).
			Msg("last bank breaker closed, skipping")
		return false, nil
	}

	decision, err := s.selector.SelectRoute(p, []string{last.ChosenBankID})
	if err != nil {
		if errors.Is(err, routing.ErrNoRouteAvailable) {
			s.metrics.SweepSkipsTotal.WithLabelValues("no_route").Inc()
			s.log.Warn().
				Str("payout_id", p.ID).
				Str("currency", p.Currency).
				Msg("no alternate route, retrying next cycle")
			return false, nil
		}
		return false, errors.Wrap(err, "select route")
	}

	now := s.now()
	key := deriveIdempotencyKey(p.ID, last.CreatedAt)

	tx, err := s.payouts.Begin()
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	// Conditional status update is the row guard: if a concurrent sweep
	// already rerouted this payout, we see zero rows and back off.
	won, err := s.payouts.MarkRerouted(tx, p.ID)
	if err != nil {
		return false, err
	}
	if !won {
		s.metrics.SweepSkipsTotal.WithLabelValues("already_handled").Inc()
		return false, nil
	}

	decision.ID = uuid.NewString()
	decision.IdempotencyKey = key
	decision.Reason = "failover:" + decision.Reason
	decision.CreatedAt = now
	if _, err := s.decisions.Insert(tx, decision); err != nil {
		return false, err
	}

	instruction := &domain.SettlementInstruction{
		ID:             uuid.NewString(),
		PayoutID:       p.ID,
		BankID:         decision.ChosenBankID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Rail:           domain.RailLocal,
		Status:         domain.InstructionPending,
		IdempotencyKey: key,
		CreatedAt:      now,
	}
	if _, err := s.settlements.InsertInstruction(tx, instruction); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "commit reroute")
	}

	// Ledger posting and event publication happen after commit: the reroute
	// stands even if they fail, and downstream settlement is idempotent.
	if err := s.poster.PostLedgerEntries(instruction); err != nil {
		s.log.Error().Err(err).
			Str("payout_id", p.ID).
			Str("instruction_id", instruction.ID).
			Msg("ledger posting failed")
	}

	s.publisher.PublishEvent("payout", p.ID, "payout.rerouted", map[string]string{
		"payout_id":   p.ID,
		"old_bank_id": last.ChosenBankID,
		"new_bank_id": decision.ChosenBankID,
	})

	s.metrics.ReroutesTotal.WithLabelValues(decision.ChosenBankID).Inc()
	s.log.Info().
		Str("payout_id", p.ID).
		Str("old_bank_id", last.ChosenBankID).
		Str("new_bank_id", decision.ChosenBankID).
		Msg("payout rerouted")
	return true, nil
}

// deriveIdempotencyKey is deterministic over the payout and the superseded
// routing attempt, so repeated sweeps over the same stuck payout derive the
// same key and cannot double-submit.
func deriveIdempotencyKey(payoutID string, attempt time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("failover:%s:%d", payoutID, attempt.Unix())))
	return fmt.Sprintf("%x", sum[:16])
}
