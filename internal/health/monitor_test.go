package health

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molam/bankrouter/internal/config"
	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/observability"
	"github.com/molam/bankrouter/internal/repository"
)

type capturedAlert struct {
	Type     string
	EntityID string
	Severity domain.AlertSeverity
	Message  string
}

type capturingRecorder struct {
	mu     sync.Mutex
	alerts []capturedAlert
}

func (r *capturingRecorder) RecordAlert(alertType, entityID string, severity domain.AlertSeverity, message, metadata string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, capturedAlert{alertType, entityID, severity, message})
}

func (r *capturingRecorder) bySeverity(sev domain.AlertSeverity) []capturedAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []capturedAlert
	for _, a := range r.alerts {
		if a.Severity == sev {
			out = append(out, a)
		}
	}
	return out
}

type fixture struct {
	db       *sql.DB
	banks    *repository.BankRepo
	health   *repository.HealthRepo
	breakers *repository.BreakerRepo
	recorder *capturingRecorder
	monitor  *Monitor
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:       db,
		banks:    repository.NewBankRepo(db),
		health:   repository.NewHealthRepo(db),
		breakers: repository.NewBreakerRepo(db),
		recorder: &capturingRecorder{},
	}
	f.monitor = NewMonitor(cfg, f.banks, f.health, f.breakers,
		f.recorder, observability.NewMetrics(), zerolog.Nop())
	return f
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.ProbeTimeout = 2 * time.Second
	cfg.SlowLatency = 100 * time.Millisecond
	return cfg
}

func (f *fixture) addBank(t *testing.T, id, url string, risk float64) {
	t.Helper()
	require.NoError(t, f.banks.Insert(&domain.BankProfile{
		ID:             id,
		Name:           id,
		Status:         domain.BankActive,
		RiskScore:      risk,
		HealthCheckURL: url,
		Currencies:     []string{"KES"},
		Rails:          []domain.Rail{domain.RailLocal},
		CreatedAt:      time.Now(),
	}))
}

func (f *fixture) riskOf(t *testing.T, id string) float64 {
	t.Helper()
	b, err := f.banks.GetByID(id)
	require.NoError(t, err)
	return b.RiskScore
}

func okServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func failServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthCycleSuccessDecaysRisk(t *testing.T) {
	f := newFixture(t, testConfig())
	srv := okServer(t)
	f.addBank(t, "BNK-A", srv.URL, 0.30)

	f.monitor.RunHealthCycle(context.Background())

	assert.InDelta(t, 0.29, f.riskOf(t, "BNK-A"), 1e-9)

	m, err := f.health.GetMetrics("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthHealthy, m.Status)
	assert.Equal(t, 0, m.RecentFailures)
	assert.InDelta(t, 1.0, m.SuccessRate, 1e-9)
	assert.Empty(t, m.LastError)

	open, err := f.breakers.IsOpen("BNK-A")
	require.NoError(t, err)
	assert.False(t, open)
}

func TestHealthCycleRiskNeverBelowZero(t *testing.T) {
	f := newFixture(t, testConfig())
	srv := okServer(t)
	f.addBank(t, "BNK-A", srv.URL, 0)

	for i := 0; i < 3; i++ {
		f.monitor.RunHealthCycle(context.Background())
	}
	assert.Equal(t, 0.0, f.riskOf(t, "BNK-A"))
}

func TestHealthCycleBadResponseOpensBreaker(t *testing.T) {
	f := newFixture(t, testConfig())
	srv := failServer(t)
	f.addBank(t, "BNK-A", srv.URL, 0)

	f.monitor.RunHealthCycle(context.Background())

	// One failure: risk steps to 0.1, window avg success is 0 which is below
	// the failover success threshold, so the breaker opens.
	assert.InDelta(t, 0.10, f.riskOf(t, "BNK-A"), 1e-9)

	open, err := f.breakers.IsOpen("BNK-A")
	require.NoError(t, err)
	assert.True(t, open)

	m, err := f.health.GetMetrics("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDown, m.Status)
	assert.Equal(t, 1, m.RecentFailures)
	assert.Contains(t, m.LastError, "unexpected status 503")

	critical := f.recorder.bySeverity(domain.AlertCritical)
	require.Len(t, critical, 1)
	assert.Equal(t, "BNK-A", critical[0].EntityID)
}

func TestHealthCycleOpenedAtStableAcrossCycles(t *testing.T) {
	f := newFixture(t, testConfig())
	srv := failServer(t)
	f.addBank(t, "BNK-A", srv.URL, 0)

	f.monitor.RunHealthCycle(context.Background())
	first, err := f.breakers.Get("BNK-A")
	require.NoError(t, err)
	require.NotNil(t, first.OpenedAt)

	f.monitor.RunHealthCycle(context.Background())
	f.monitor.RunHealthCycle(context.Background())

	cb, err := f.breakers.Get("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, *first.OpenedAt, *cb.OpenedAt)
	assert.Equal(t, 3, cb.FailureCount)

	m, err := f.health.GetMetrics("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, 3, m.RecentFailures)
}

func TestHealthCycleRiskSaturatesAtOne(t *testing.T) {
	f := newFixture(t, testConfig())
	srv := failServer(t)
	f.addBank(t, "BNK-A", srv.URL, 0)

	for i := 0; i < 20; i++ {
		f.monitor.RunHealthCycle(context.Background())
	}

	assert.Equal(t, 1.0, f.riskOf(t, "BNK-A"))

	m, err := f.health.GetMetrics("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDown, m.Status)
	assert.InDelta(t, 0.0, m.SuccessRate, 1e-9)

	count, err := f.health.CountLogs("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, 20, count)
}

func TestHealthCycleNetworkErrorUsesTimeoutStep(t *testing.T) {
	f := newFixture(t, testConfig())
	// Nothing listens here; the probe fails with a connection error.
	f.addBank(t, "BNK-A", "http://127.0.0.1:1/heartbeat", 0)

	f.monitor.RunHealthCycle(context.Background())

	assert.InDelta(t, 0.05, f.riskOf(t, "BNK-A"), 1e-9)

	m, err := f.health.GetMetrics("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDown, m.Status)
	assert.NotEmpty(t, m.LastError)
}

func TestHealthCycleSlowResponseDoesNotOpenBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.SlowLatency = time.Millisecond
	f := newFixture(t, cfg)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	f.addBank(t, "BNK-A", srv.URL, 0)

	f.monitor.RunHealthCycle(context.Background())

	// A slow success nudges risk but counts as a received response, so a
	// single slow probe never trips the breaker.
	assert.InDelta(t, 0.05, f.riskOf(t, "BNK-A"), 1e-9)

	open, err := f.breakers.IsOpen("BNK-A")
	require.NoError(t, err)
	assert.False(t, open)

	m, err := f.health.GetMetrics("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthHealthy, m.Status)
}

func TestHealthCycleDegradedCondition(t *testing.T) {
	f := newFixture(t, testConfig())
	srv := okServer(t)
	// Risk above the degraded threshold but below failover; probes succeed.
	f.addBank(t, "BNK-A", srv.URL, 0.70)

	f.monitor.RunHealthCycle(context.Background())

	m, err := f.health.GetMetrics("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDegraded, m.Status)
	assert.Equal(t, 0, m.RecentFailures)

	open, err := f.breakers.IsOpen("BNK-A")
	require.NoError(t, err)
	assert.False(t, open)

	warnings := f.recorder.bySeverity(domain.AlertWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "BNK-A", warnings[0].EntityID)
}

func TestHealthCycleIsolatesBankFailures(t *testing.T) {
	f := newFixture(t, testConfig())
	ok := okServer(t)
	f.addBank(t, "BNK-BAD", "http://127.0.0.1:1/heartbeat", 0)
	f.addBank(t, "BNK-GOOD", ok.URL, 0.20)

	f.monitor.RunHealthCycle(context.Background())

	// The unreachable bank did not prevent the healthy one from being
	// evaluated.
	m, err := f.health.GetMetrics("BNK-GOOD")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthHealthy, m.Status)
	assert.InDelta(t, 0.19, f.riskOf(t, "BNK-GOOD"), 1e-9)

	bad, err := f.health.GetMetrics("BNK-BAD")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDown, bad.Status)
}

func TestHealthCycleSkipsInactiveBanks(t *testing.T) {
	f := newFixture(t, testConfig())
	srv := okServer(t)
	f.addBank(t, "BNK-A", srv.URL, 0)
	require.NoError(t, f.banks.UpdateStatus("BNK-A", domain.BankInactive))

	f.monitor.RunHealthCycle(context.Background())

	count, err := f.health.CountLogs("BNK-A")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMonitorStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.HealthInterval = 10 * time.Millisecond
	f := newFixture(t, cfg)
	srv := okServer(t)
	f.addBank(t, "BNK-A", srv.URL, 0.50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.monitor.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	f.monitor.Stop()

	count, err := f.health.CountLogs("BNK-A")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}
