package failover

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molam/bankrouter/internal/config"
	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/events"
	"github.com/molam/bankrouter/internal/ledger"
	"github.com/molam/bankrouter/internal/observability"
	"github.com/molam/bankrouter/internal/repository"
	"github.com/molam/bankrouter/internal/routing"
)

type sweepFixture struct {
	db            *sql.DB
	banks         *repository.BankRepo
	payouts       *repository.PayoutRepo
	decisions     *repository.RoutingRepo
	settlements   *repository.SettlementRepo
	confirmations *repository.ConfirmationRepo
	breakers      *repository.BreakerRepo
	ledgers       *repository.LedgerRepo
	sweeper       *Sweeper
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &sweepFixture{
		db:            db,
		banks:         repository.NewBankRepo(db),
		payouts:       repository.NewPayoutRepo(db),
		decisions:     repository.NewRoutingRepo(db),
		settlements:   repository.NewSettlementRepo(db),
		confirmations: repository.NewConfirmationRepo(db),
		breakers:      repository.NewBreakerRepo(db),
		ledgers:       repository.NewLedgerRepo(db),
	}

	log := zerolog.Nop()
	selector := routing.NewSelector(f.banks, f.breakers, log)
	poster := ledger.NewStorePoster(f.ledgers, log)
	publisher := events.NewLogPublisher(log)

	f.sweeper = NewSweeper(config.Default(), f.payouts, f.decisions,
		f.settlements, f.breakers, selector, poster, publisher,
		observability.NewMetrics(), log)
	return f
}

func (f *sweepFixture) addBank(t *testing.T, id string, risk float64, currencies ...string) {
	t.Helper()
	if len(currencies) == 0 {
		currencies = []string{"KES"}
	}
	require.NoError(t, f.banks.Insert(&domain.BankProfile{
		ID:             id,
		Name:           id,
		Status:         domain.BankActive,
		RiskScore:      risk,
		HealthCheckURL: "http://" + id + ".example/heartbeat",
		Currencies:     currencies,
		Rails:          []domain.Rail{domain.RailLocal},
		CreatedAt:      time.Now(),
	}))
}

// addStuckPayout creates a sent payout processed an hour ago with one routing
// decision pointing at bankID.
func (f *sweepFixture) addStuckPayout(t *testing.T, id, bankID string) *domain.RoutingDecision {
	t.Helper()
	processed := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, f.payouts.Insert(&domain.Payout{
		ID:          id,
		Status:      domain.PayoutSent,
		Amount:      1500,
		Currency:    "KES",
		Country:     "KE",
		CreatedAt:   processed.Add(-time.Minute),
		ProcessedAt: &processed,
	}))
	d := &domain.RoutingDecision{
		ID:             uuid.NewString(),
		PayoutID:       id,
		ChosenBankID:   bankID,
		Reason:         "lowest_risk",
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      processed.Add(-time.Minute),
	}
	inserted, err := f.decisions.Insert(nil, d)
	require.NoError(t, err)
	require.True(t, inserted)
	return d
}

func (f *sweepFixture) payoutStatus(t *testing.T, id string) domain.PayoutStatus {
	t.Helper()
	p, err := f.payouts.GetByID(id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Status
}

func TestSweepReroutesStuckPayout(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-OLD", 0.9)
	f.addBank(t, "BNK-NEW", 0.1)
	f.addStuckPayout(t, "po-1", "BNK-OLD")
	require.NoError(t, f.breakers.Open("BNK-OLD", time.Now()))

	f.sweeper.RunFailoverSweep(context.Background())

	assert.Equal(t, domain.PayoutRerouted, f.payoutStatus(t, "po-1"))

	trail, err := f.decisions.ListForPayout("po-1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	latest, err := f.decisions.GetLatestForPayout("po-1")
	require.NoError(t, err)
	assert.Equal(t, "BNK-NEW", latest.ChosenBankID)
	assert.Equal(t, "failover:lowest_risk", latest.Reason)

	instructions, err := f.settlements.ListForPayout("po-1")
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	si := instructions[0]
	assert.Equal(t, "BNK-NEW", si.BankID)
	assert.Equal(t, domain.InstructionPending, si.Status)
	assert.Equal(t, latest.IdempotencyKey, si.IdempotencyKey)
	assert.Equal(t, 1500.0, si.Amount)

	entries, err := f.ledgers.ListForInstruction(si.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].AmountUSD, entries[1].AmountUSD)
	assert.NotEqual(t, entries[0].Direction, entries[1].Direction)
}

func TestSweepIsIdempotentAcrossCycles(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-OLD", 0.9)
	f.addBank(t, "BNK-NEW", 0.1)
	f.addStuckPayout(t, "po-1", "BNK-OLD")
	require.NoError(t, f.breakers.Open("BNK-OLD", time.Now()))

	f.sweeper.RunFailoverSweep(context.Background())
	f.sweeper.RunFailoverSweep(context.Background())

	count, err := f.decisions.CountForPayout("po-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	instructions, err := f.settlements.CountForPayout("po-1")
	require.NoError(t, err)
	assert.Equal(t, 1, instructions)
}

func TestSweepSkipsWhenBreakerClosed(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-OLD", 0.2)
	f.addBank(t, "BNK-NEW", 0.1)
	f.addStuckPayout(t, "po-1", "BNK-OLD")

	f.sweeper.RunFailoverSweep(context.Background())

	assert.Equal(t, domain.PayoutSent, f.payoutStatus(t, "po-1"))
	count, err := f.decisions.CountForPayout("po-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSweepSkipsPayoutWithoutRoutingHistory(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-NEW", 0.1)
	processed := time.Now().Add(-time.Hour)
	require.NoError(t, f.payouts.Insert(&domain.Payout{
		ID:          "po-orphan",
		Status:      domain.PayoutSent,
		Amount:      200,
		Currency:    "KES",
		Country:     "KE",
		CreatedAt:   processed,
		ProcessedAt: &processed,
	}))

	f.sweeper.RunFailoverSweep(context.Background())

	assert.Equal(t, domain.PayoutSent, f.payoutStatus(t, "po-orphan"))
}

func TestSweepIgnoresConfirmedPayouts(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-OLD", 0.9)
	f.addBank(t, "BNK-NEW", 0.1)
	f.addStuckPayout(t, "po-1", "BNK-OLD")
	require.NoError(t, f.breakers.Open("BNK-OLD", time.Now()))

	_, err := f.confirmations.BulkInsert([]domain.Confirmation{{
		ID:            uuid.NewString(),
		PayoutID:      "po-1",
		BankID:        "BNK-OLD",
		BankReference: "REF-1",
		Amount:        1500,
		Currency:      "KES",
		ConfirmedAt:   time.Now(),
		ReportID:      uuid.NewString(),
	}})
	require.NoError(t, err)

	f.sweeper.RunFailoverSweep(context.Background())

	assert.Equal(t, domain.PayoutSent, f.payoutStatus(t, "po-1"))
}

func TestSweepLeavesPayoutWhenNoAlternateRoute(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-OLD", 0.9)
	f.addStuckPayout(t, "po-1", "BNK-OLD")
	require.NoError(t, f.breakers.Open("BNK-OLD", time.Now()))

	f.sweeper.RunFailoverSweep(context.Background())

	assert.Equal(t, domain.PayoutSent, f.payoutStatus(t, "po-1"))
	count, err := f.settlements.CountForPayout("po-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSweepExcludesCurrencyMismatchedAlternate(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-OLD", 0.9, "KES")
	f.addBank(t, "BNK-USD", 0.1, "USD")
	f.addStuckPayout(t, "po-1", "BNK-OLD")
	require.NoError(t, f.breakers.Open("BNK-OLD", time.Now()))

	f.sweeper.RunFailoverSweep(context.Background())

	assert.Equal(t, domain.PayoutSent, f.payoutStatus(t, "po-1"))
}

func TestSweepHandlesMultipleCandidates(t *testing.T) {
	f := newSweepFixture(t)
	f.addBank(t, "BNK-OLD", 0.9)
	f.addBank(t, "BNK-NEW", 0.1)
	require.NoError(t, f.breakers.Open("BNK-OLD", time.Now()))

	f.addStuckPayout(t, "po-1", "BNK-OLD")
	// No routing history: must be skipped without blocking po-3.
	processed := time.Now().Add(-time.Hour)
	require.NoError(t, f.payouts.Insert(&domain.Payout{
		ID:          "po-2",
		Status:      domain.PayoutSent,
		Amount:      300,
		Currency:    "KES",
		Country:     "KE",
		CreatedAt:   processed,
		ProcessedAt: &processed,
	}))
	f.addStuckPayout(t, "po-3", "BNK-OLD")

	f.sweeper.RunFailoverSweep(context.Background())

	assert.Equal(t, domain.PayoutRerouted, f.payoutStatus(t, "po-1"))
	assert.Equal(t, domain.PayoutSent, f.payoutStatus(t, "po-2"))
	assert.Equal(t, domain.PayoutRerouted, f.payoutStatus(t, "po-3"))
}

func TestDeriveIdempotencyKeyIsDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	k1 := deriveIdempotencyKey("po-1", at)
	k2 := deriveIdempotencyKey("po-1", at)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)

	assert.NotEqual(t, k1, deriveIdempotencyKey("po-2", at))
	assert.NotEqual(t, k1, deriveIdempotencyKey("po-1", at.Add(time.Second)))
}
