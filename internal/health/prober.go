package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Outcome classifies a single probe. Exactly three cases exist: a timely 2xx
// is a success, a 2xx slower than the slow-latency threshold is a slow
// success (partial failure), everything else is a failure.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSlow    Outcome = "slow"
	OutcomeFailure Outcome = "failure"
)

// ProbeResult is the observation of one heartbeat probe. LatencyMs is nil
// when no response was received at all.
type ProbeResult struct {
	Outcome    Outcome
	LatencyMs  *int64
	StatusCode int
	Err        string
}

// Anomalies renders the structured anomaly payload stored in the health log.
// Empty on a clean success.
func (r ProbeResult) Anomalies() string {
	if r.Outcome == OutcomeSuccess {
		return ""
	}
	payload := map[string]any{"outcome": string(r.Outcome)}
	if r.StatusCode != 0 {
		payload["status_code"] = r.StatusCode
	}
	if r.Err != "" {
		payload["error"] = r.Err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"outcome":%q}`, r.Outcome)
	}
	return string(data)
}

// Prober performs bounded heartbeat probes against bank health endpoints.
type Prober struct {
	client      *http.Client
	slowLatency time.Duration
}

func NewProber(timeout, slowLatency time.Duration) *Prober {
	return &Prober{
		client:      &http.Client{Timeout: timeout},
		slowLatency: slowLatency,
	}
}

// Probe performs one GET against the heartbeat URL. A probe that exceeds the
// client timeout is a failure, not retried within the cycle; the next
// scheduled cycle is the retry mechanism.
func (p *Prober) Probe(ctx context.Context, url string) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{Outcome: OutcomeFailure, Err: err.Error()}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		// Network error or timeout: hard failure, no latency recorded.
		return ProbeResult{Outcome: OutcomeFailure, Err: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProbeResult{
			Outcome:    OutcomeFailure,
			StatusCode: resp.StatusCode,
			LatencyMs:  &latency,
			Err:        fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	if time.Duration(latency)*time.Millisecond > p.slowLatency {
		return ProbeResult{Outcome: OutcomeSlow, LatencyMs: &latency, StatusCode: resp.StatusCode}
	}
	return ProbeResult{Outcome: OutcomeSuccess, LatencyMs: &latency, StatusCode: resp.StatusCode}
}
