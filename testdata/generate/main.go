// Command generate produces deterministic seed fixtures: the bank registry,
// a payout population, and a sample confirmation report.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/molam/bankrouter/internal/domain"
)

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

	banks := []domain.BankProfile{
		{
			ID: "BNK-EQTY", Name: "Equity Settlement Bank", Status: domain.BankActive,
			HealthCheckURL: "http://localhost:9101/heartbeat",
			Currencies:     []string{"KES", "USD"},
			Rails:          []domain.Rail{domain.RailLocal, domain.RailSwift},
			CreatedAt:      now.AddDate(-1, 0, 0),
		},
		{
			ID: "BNK-ZNTH", Name: "Zenith Clearing", Status: domain.BankActive,
			HealthCheckURL: "http://localhost:9102/heartbeat",
			Currencies:     []string{"NGN", "USD"},
			Rails:          []domain.Rail{domain.RailLocal},
			CreatedAt:      now.AddDate(-1, 0, 0),
		},
		{
			ID: "BNK-ABSA", Name: "Absa Corridor", Status: domain.BankActive,
			HealthCheckURL: "http://localhost:9103/heartbeat",
			Currencies:     []string{"ZAR", "USD"},
			Rails:          []domain.Rail{domain.RailLocal, domain.RailRTGS},
			CreatedAt:      now.AddDate(0, -6, 0),
		},
		{
			ID: "BNK-KCB", Name: "KCB Payouts", Status: domain.BankActive,
			HealthCheckURL: "http://localhost:9104/heartbeat",
			Currencies:     []string{"KES", "NGN", "ZAR", "USD"},
			Rails:          []domain.Rail{domain.RailLocal},
			CreatedAt:      now.AddDate(0, -3, 0),
		},
		{
			ID: "BNK-LEGACY", Name: "Legacy Gateway", Status: domain.BankInactive,
			HealthCheckURL: "http://localhost:9105/heartbeat",
			Currencies:     []string{"USD"},
			Rails:          []domain.Rail{domain.RailSwift},
			CreatedAt:      now.AddDate(-2, 0, 0),
		},
	}
	writeJSON(filepath.Join(baseDir, "banks.json"), banks)

	currencies := []string{"KES", "NGN", "ZAR"}
	countries := map[string]string{"KES": "KE", "NGN": "NG", "ZAR": "ZA"}

	var payouts []domain.Payout
	for i := 1; i <= 120; i++ {
		curr := currencies[rng.Intn(len(currencies))]
		amount := math.Round((50+rng.Float64()*5000)*100) / 100
		createdAt := now.Add(-time.Duration(rng.Intn(72)) * time.Hour)

		// Distribution: 60% settled, 25% sent, 10% pending, 5% failed.
		var status domain.PayoutStatus
		var processedAt *time.Time
		roll := rng.Float64()
		switch {
		case roll < 0.60:
			status = domain.PayoutSettled
			t := createdAt.Add(time.Duration(rng.Intn(120)+1) * time.Minute)
			processedAt = &t
		case roll < 0.85:
			status = domain.PayoutSent
			t := createdAt.Add(time.Duration(rng.Intn(30)+1) * time.Minute)
			processedAt = &t
		case roll < 0.95:
			status = domain.PayoutPending
		default:
			status = domain.PayoutFailed
		}

		payouts = append(payouts, domain.Payout{
			ID:          fmt.Sprintf("PAY-%04d", i),
			Status:      status,
			Amount:      amount,
			Currency:    curr,
			Country:     countries[curr],
			CreatedAt:   createdAt,
			ProcessedAt: processedAt,
		})
	}
	writeJSON(filepath.Join(baseDir, "payouts.json"), payouts)

	// Sample confirmation report covering the first few settled payouts.
	writeConfirmationCSV(filepath.Join(baseDir, "confirmations_sample.csv"), payouts, now)

	fmt.Printf("Wrote fixtures to %s: %d banks, %d payouts\n", baseDir, len(banks), len(payouts))
}

func writeConfirmationCSV(path string, payouts []domain.Payout, now time.Time) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	_ = w.Write([]string{"payout_id", "bank_reference", "amount", "currency", "confirmed_at"})
	written := 0
	for _, p := range payouts {
		if p.Status != domain.PayoutSettled || written >= 10 {
			continue
		}
		_ = w.Write([]string{
			p.ID,
			fmt.Sprintf("REF-%s", p.ID),
			fmt.Sprintf("%.2f", p.Amount),
			p.Currency,
			now.Format(time.RFC3339),
		})
		written++
	}
}

func writeJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	candidates := []string{"testdata", filepath.Join("..", "..", "testdata"), "."}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "."
}
