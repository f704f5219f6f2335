package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bankrouter"

// Metrics holds the engine's Prometheus instruments on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	ProbesTotal       *prometheus.CounterVec
	BreakerOpensTotal *prometheus.CounterVec
	ReroutesTotal     *prometheus.CounterVec
	SweepSkipsTotal   *prometheus.CounterVec
	CycleDuration     *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ProbesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Health probes by bank and outcome (success, slow, failure).",
		}, []string{"bank_id", "outcome"}),
		BreakerOpensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_opens_total",
			Help:      "Circuit breaker open evaluations by bank.",
		}, []string{"bank_id"}),
		ReroutesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_rerouted_total",
			Help:      "Payouts rerouted by the failover sweeper, by new bank.",
		}, []string{"bank_id"}),
		SweepSkipsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_skips_total",
			Help:      "Sweep candidates skipped, by reason.",
		}, []string{"reason"}),
		CycleDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of background cycles.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"cycle"}),
	}

	m.registry.MustRegister(
		m.ProbesTotal,
		m.BreakerOpensTotal,
		m.ReroutesTotal,
		m.SweepSkipsTotal,
		m.CycleDuration,
	)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
