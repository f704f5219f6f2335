package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/ingestion"
	"github.com/molam/bankrouter/internal/repository"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	bankRepo       *repository.BankRepo
	healthRepo     *repository.HealthRepo
	breakerRepo    *repository.BreakerRepo
	payoutRepo     *repository.PayoutRepo
	routingRepo    *repository.RoutingRepo
	settlementRepo *repository.SettlementRepo
	alertRepo      *repository.AlertRepo
	ingestionSvc   *ingestion.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// --- Banks ---

func (h *Handlers) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.bankRepo.ListAll()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"banks": banks})
}

func (h *Handlers) GetBankHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bank, err := h.bankRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "bank not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics, err := h.healthRepo.GetMetrics(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	breaker, err := h.breakerRepo.Get(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bank":    bank,
		"metrics": metrics,
		"breaker": breaker,
	})
}

func (h *Handlers) ActivateBank(w http.ResponseWriter, r *http.Request) {
	h.setBankStatus(w, r, domain.BankActive)
}

func (h *Handlers) DeactivateBank(w http.ResponseWriter, r *http.Request) {
	h.setBankStatus(w, r, domain.BankInactive)
}

func (h *Handlers) setBankStatus(w http.ResponseWriter, r *http.Request, status domain.BankStatus) {
	id := chi.URLParam(r, "id")
	if err := h.bankRepo.UpdateStatus(id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "bank not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(status)})
}

// --- Circuit breakers ---

func (h *Handlers) ListBreakers(w http.ResponseWriter, r *http.Request) {
	breakers, err := h.breakerRepo.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"breakers": breakers})
}

// CloseBreaker is the manual operator reset; there is no automatic close
// transition.
func (h *Handlers) CloseBreaker(w http.ResponseWriter, r *http.Request) {
	bankID := chi.URLParam(r, "bankId")
	if err := h.breakerRepo.Close(bankID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "no breaker for bank")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bank_id": bankID, "state": "closed"})
}

// --- Payouts ---

func (h *Handlers) ListPayouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.PayoutFilter{
		Status:   q.Get("status"),
		Currency: q.Get("currency"),
		Country:  q.Get("country"),
		Page:     parseIntDefault(q.Get("page"), 1),
		Limit:    parseIntDefault(q.Get("limit"), 50),
	}

	payouts, total, err := h.payoutRepo.List(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payouts": payouts,
		"total":   total,
		"page":    filter.Page,
		"limit":   filter.Limit,
	})
}

func (h *Handlers) GetRoutingHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payout, err := h.payoutRepo.GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if payout == nil {
		writeError(w, http.StatusNotFound, "payout not found")
		return
	}

	decisions, err := h.routingRepo.ListForPayout(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	instructions, err := h.settlementRepo.ListForPayout(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payout":       payout,
		"decisions":    decisions,
		"instructions": instructions,
	})
}

// --- Confirmations ---

func (h *Handlers) IngestConfirmations(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	bankID := r.FormValue("bank_id")
	format := r.FormValue("format")
	if bankID == "" || format == "" {
		writeError(w, http.StatusBadRequest, "bank_id and format are required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read file: "+err.Error())
		return
	}

	result, err := h.ingestionSvc.IngestReport(data, bankID, format)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- Alerts ---

func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	alerts, err := h.alertRepo.List(repository.AlertFilter{
		EntityID: q.Get("entity_id"),
		Severity: q.Get("severity"),
		Limit:    parseIntDefault(q.Get("limit"), 100),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

// --- Dashboard ---

func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.payoutRepo.GetDashboardStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics, err := h.healthRepo.ListMetrics()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	breakers, err := h.breakerRepo.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"payouts":  stats,
		"banks":    metrics,
		"breakers": breakers,
	})
}
