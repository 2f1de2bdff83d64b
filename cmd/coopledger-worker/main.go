package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coopledger/internal/amqp"
	"coopledger/internal/config"
	"coopledger/internal/log"
	"coopledger/internal/payout"
	"coopledger/internal/services"
	"coopledger/internal/sheets"
	gsheet "coopledger/internal/sheets/google"
	"coopledger/internal/storage"
	"coopledger/internal/worker"
)

func main() {
	// Load .env for local development; ignored when absent.
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: "coopledger-worker"})
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
	provider := payout.NewMemoryProvider()
	redistribution := services.NewRedistributionService(repo, ledger, provider, services.RedistributionOptions{
		FeeRate:       cfg.FeeRate,
		PoolSize:      cfg.PayoutPoolSize,
		PayoutTimeout: cfg.PayoutTimeout,
		PayoutRetries: cfg.PayoutRetries,
		PayoutBackoff: cfg.PayoutBackoff,
	}, logger)

	// The spreadsheet mirror is optional: without a spreadsheet id the
	// worker only handles payments and retries.
	var appender sheets.TransactionAppender
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		appender = client
		logger.Info("bookkeeping mirror enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("bookkeeping mirror disabled, no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPPaymentsQueue, cfg.AMQPResultsQueue)
	if err != nil {
		logger.Error("failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.New(redistribution, repo, appender, amqpClient,
		cfg.RetryInterval, cfg.MirrorBatchSize, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := amqpClient.ConsumePaymentReceived(ctx, w.HandlePaymentReceived); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("payment consumption failed", "error", err)
			}
			cancel()
		}
	}()

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker loop failed", "error", err)
			cancel()
		}
	}()

	logger.Info("coopledger worker started",
		"cooperative", cfg.CooperativeID,
		"retry_interval", cfg.RetryInterval,
		"payments_queue", cfg.AMQPPaymentsQueue)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	cancel()

	// Give in-flight handlers a moment to finish before closing.
	time.Sleep(2 * time.Second)
	logger.Info("worker shutdown complete")
}
