package domain

import "time"

type BankStatus string

const (
	BankActive   BankStatus = "active"
	BankInactive BankStatus = "inactive"
)

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

type Rail string

const (
	RailLocal Rail = "local"
	RailSwift Rail = "swift"
	RailRTGS  Rail = "rtgs"
)

// BankProfile is a configured external settlement counterpart capable of
// receiving payouts. RiskScore is a continuous [0,1] measure of recent
// unreliability; it is mutated only by the health monitor.
type BankProfile struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Status         BankStatus `json:"status"`
	RiskScore      float64    `json:"risk_score"`
	HealthCheckURL string     `json:"health_check_url"`
	Currencies     []string   `json:"currencies"`
	Rails          []Rail     `json:"rails"`
	CreatedAt      time.Time  `json:"created_at"`
}

// SupportsCurrency reports whether the bank can settle the given currency.
func (b *BankProfile) SupportsCurrency(currency string) bool {
	for _, c := range b.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// HealthLogEntry is one immutable probe observation. LatencyMs is nil on a
// hard failure where no response was received.
type HealthLogEntry struct {
	ID        string    `json:"id"`
	BankID    string    `json:"bank_id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs *int64    `json:"latency_ms,omitempty"`
	Success   bool      `json:"success"`
	Anomalies string    `json:"anomalies,omitempty"`
}

// HealthMetrics is the current operational snapshot for a bank, recomputed by
// the health monitor after every probe cycle. Distinct from the append-only
// health log.
type HealthMetrics struct {
	BankID         string       `json:"bank_id"`
	LastChecked    time.Time    `json:"last_checked"`
	Status         HealthStatus `json:"status"`
	SuccessRate    float64      `json:"success_rate"`
	AvgLatencyMs   float64      `json:"avg_latency_ms"`
	RecentFailures int          `json:"recent_failures"`
	LastError      string       `json:"last_error,omitempty"`
}

type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// CircuitBreaker excludes a bank from new routing decisions once it is judged
// unhealthy. OpenedAt is set on the first open only and preserved by later
// opens; FailureCount increments monotonically while open. There is no
// automatic close: an operator reset is the only path back to closed.
type CircuitBreaker struct {
	BankID       string       `json:"bank_id"`
	State        BreakerState `json:"state"`
	OpenedAt     *time.Time   `json:"opened_at,omitempty"`
	FailureCount int          `json:"failure_count"`
}
