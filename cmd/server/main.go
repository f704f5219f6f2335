package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/molam/bankrouter/internal/alerts"
	"github.com/molam/bankrouter/internal/api"
	"github.com/molam/bankrouter/internal/config"
	"github.com/molam/bankrouter/internal/domain"
	"github.com/molam/bankrouter/internal/events"
	"github.com/molam/bankrouter/internal/failover"
	"github.com/molam/bankrouter/internal/health"
	"github.com/molam/bankrouter/internal/ingestion"
	"github.com/molam/bankrouter/internal/ledger"
	"github.com/molam/bankrouter/internal/observability"
	"github.com/molam/bankrouter/internal/repository"
	"github.com/molam/bankrouter/internal/routing"
)

func main() {
	log := observability.NewLogger()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	log.Info().Str("db_path", cfg.DBPath).Msg("initializing database")
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("init db")
	}
	defer db.Close()

	// Repositories.
	bankRepo := repository.NewBankRepo(db)
	healthRepo := repository.NewHealthRepo(db)
	breakerRepo := repository.NewBreakerRepo(db)
	payoutRepo := repository.NewPayoutRepo(db)
	routingRepo := repository.NewRoutingRepo(db)
	settlementRepo := repository.NewSettlementRepo(db)
	confirmationRepo := repository.NewConfirmationRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	alertRepo := repository.NewAlertRepo(db)

	// Collaborators.
	recorder := alerts.NewStoreRecorder(alertRepo, log)
	poster := ledger.NewStorePoster(ledgerRepo, log)

	var publisher events.Publisher
	if cfg.RedisAddr != "" {
		rp := events.NewRedisPublisher(cfg.RedisAddr, log)
		defer rp.Close()
		publisher = rp
		log.Info().Str("redis_addr", cfg.RedisAddr).Msg("publishing events to redis")
	} else {
		publisher = events.NewLogPublisher(log)
	}

	// Services.
	metrics := observability.NewMetrics()
	selector := routing.NewSelector(bankRepo, breakerRepo, log)
	monitor := health.NewMonitor(cfg, bankRepo, healthRepo, breakerRepo, recorder, metrics, log)
	sweeper := failover.NewSweeper(cfg, payoutRepo, routingRepo, settlementRepo,
		breakerRepo, selector, poster, publisher, metrics, log)
	ingestionSvc := ingestion.NewService(confirmationRepo, payoutRepo, publisher, log)

	// Seed banks if the registry is empty.
	count, err := bankRepo.Count()
	if err != nil {
		log.Fatal().Err(err).Msg("count banks")
	}
	if count == 0 {
		if err := seedBanks(bankRepo, log); err != nil {
			log.Warn().Err(err).Msg("failed to seed banks")
		}
	} else {
		log.Info().Int("banks", count).Msg("bank registry already populated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor.Start(ctx)
	sweeper.Start(ctx)

	router := api.NewRouter(bankRepo, healthRepo, breakerRepo, payoutRepo,
		routingRepo, settlementRepo, alertRepo, ingestionSvc, metrics)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("bank routing resilience engine listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown: stop the loops, let in-flight cycles finish.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	cancel()
	monitor.Stop()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}

func seedBanks(repo *repository.BankRepo, log zerolog.Logger) error {
	candidates := []string{
		"testdata/banks.json",
		filepath.Join(".", "testdata", "banks.json"),
	}
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "banks.json"),
			filepath.Join(dir, "..", "..", "testdata", "banks.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Info().Str("path", path).Msg("loading bank seed data")
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find banks.json in any candidate path: %w", loadErr)
	}

	var banks []domain.BankProfile
	if err := json.Unmarshal(data, &banks); err != nil {
		return fmt.Errorf("unmarshal banks: %w", err)
	}

	inserted, err := repo.BulkInsert(banks)
	if err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}

	log.Info().Int("inserted", inserted).Int("total", len(banks)).Msg("seeded banks")
	return nil
}
