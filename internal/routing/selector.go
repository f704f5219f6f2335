package routing

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/molam/bankrouter/internal/domain"
)

// ErrNoRouteAvailable is returned when every candidate bank for a payout is
// excluded, inactive, or behind an open circuit breaker.
var ErrNoRouteAvailable = errors.New("no route available")

// BankLister provides the candidate bank population.
type BankLister interface {
	ListActive() ([]domain.BankProfile, error)
}

// CircuitBreakerReader exposes the breaker state consulted during selection.
// The selector never depends on the component that maintains the breakers.
type CircuitBreakerReader interface {
	IsOpen(bankID string) (bool, error)
}

// Selector picks a settlement bank for a payout: the active bank supporting
// the payout's currency with the lowest risk score, skipping excluded banks
// and banks whose circuit is open.
type Selector struct {
	banks    BankLister
	breakers CircuitBreakerReader
	log      zerolog.Logger
}

func NewSelector(banks BankLister, breakers CircuitBreakerReader, log zerolog.Logger) *Selector {
	return &Selector{
		banks:    banks,
		breakers: breakers,
		log:      log.With().Str("component", "routing").Logger(),
	}
}

// SelectRoute returns a routing decision for the payout. The caller assigns
// the decision's identity and idempotency key before persisting it.
func (s *Selector) SelectRoute(p *domain.Payout, excludedBankIDs []string) (*domain.RoutingDecision, error) {
	banks, err := s.banks.ListActive()
	if err != nil {
		return nil, errors.Wrap(err, "list active banks")
	}

	excluded := make(map[string]bool, len(excludedBankIDs))
	for _, id := range excludedBankIDs {
		excluded[id] = true
	}

	var best *domain.BankProfile
	for i := range banks {
		b := &banks[i]
		if excluded[b.ID] || !b.SupportsCurrency(p.Currency) {
			continue
		}
		open, err := s.breakers.IsOpen(b.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "breaker state for %s", b.ID)
		}
		if open {
			continue
		}
		if best == nil || b.RiskScore < best.RiskScore {
			best = b
		}
	}

	if best == nil {
		s.log.Warn().
			Str("payout_id", p.ID).
			Str("currency", p.Currency).
			Int("excluded", len(excludedBankIDs)).
			Msg("no route available")
		return nil, ErrNoRouteAvailable
	}

	s.log.Debug().
		Str("payout_id", p.ID).
		Str("bank_id", best.ID).
		Float64("risk_score", best.RiskScore).
		Msg("route selected")

	return &domain.RoutingDecision{
		PayoutID:     p.ID,
		ChosenBankID: best.ID,
		Reason:       "lowest_risk",
	}, nil
}
