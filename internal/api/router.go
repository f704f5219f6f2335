package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/molam/bankrouter/internal/ingestion"
	"github.com/molam/bankrouter/internal/observability"
	"github.com/molam/bankrouter/internal/repository"
)

// NewRouter creates the Chi router with all operator API routes mounted.
func NewRouter(
	bankRepo *repository.BankRepo,
	healthRepo *repository.HealthRepo,
	breakerRepo *repository.BreakerRepo,
	payoutRepo *repository.PayoutRepo,
	routingRepo *repository.RoutingRepo,
	settlementRepo *repository.SettlementRepo,
	alertRepo *repository.AlertRepo,
	ingestionSvc *ingestion.Service,
	metrics *observability.Metrics,
) http.Handler {
	h := &Handlers{
		bankRepo:       bankRepo,
		healthRepo:     healthRepo,
		breakerRepo:    breakerRepo,
		payoutRepo:     payoutRepo,
		routingRepo:    routingRepo,
		settlementRepo: settlementRepo,
		alertRepo:      alertRepo,
		ingestionSvc:   ingestionSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Banks and health.
		r.Get("/banks", h.ListBanks)
		r.Get("/banks/{id}/health", h.GetBankHealth)
		r.Post("/banks/{id}/activate", h.ActivateBank)
		r.Post("/banks/{id}/deactivate", h.DeactivateBank)

		// Circuit breakers.
		r.Get("/breakers", h.ListBreakers)
		r.Post("/breakers/{bankId}/close", h.CloseBreaker)

		// Payouts and routing audit trail.
		r.Get("/payouts", h.ListPayouts)
		r.Get("/payouts/{id}/routing-history", h.GetRoutingHistory)

		// Confirmation ingestion.
		r.Post("/confirmations/ingest", h.IngestConfirmations)

		// Alerts.
		r.Get("/alerts", h.ListAlerts)

		// Dashboard.
		r.Get("/dashboard", h.GetDashboard)
	})

	return r
}
