package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coopledger/internal/config"
	apphttp "coopledger/internal/http"
	"coopledger/internal/log"
	"coopledger/internal/payout"
	"coopledger/internal/services"
	"coopledger/internal/storage"
)

func main() {
	// Load .env for local development; ignored when absent.
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: "coopledger"})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open ledger database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	locks := services.NewKeyedMutex()
	ledger := services.NewLedgerService(repo, repo, locks, cfg.CooperativeID, logger)
	budgets := services.NewBudgetService(repo)
	credits := services.NewCreditService(repo, ledger, logger)
	subsidies := services.NewSubsidyService(repo, ledger, logger)
	reports := services.NewReportingService(repo, repo, repo, repo)

	// TODO: swap for the mobile money aggregator client once the
	// cooperative's account is provisioned.
	provider := payout.NewMemoryProvider()
	redistribution := services.NewRedistributionService(repo, ledger, provider, services.RedistributionOptions{
		FeeRate:       cfg.FeeRate,
		PoolSize:      cfg.PayoutPoolSize,
		PayoutTimeout: cfg.PayoutTimeout,
		PayoutRetries: cfg.PayoutRetries,
		PayoutBackoff: cfg.PayoutBackoff,
	}, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Ledger:         ledger,
		Budgets:        budgets,
		Credits:        credits,
		Subsidies:      subsidies,
		Redistribution: redistribution,
		Reports:        reports,
	}, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("starting coopledger server",
		"port", cfg.Port, "cooperative", cfg.CooperativeID, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped gracefully")
}
