package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ebisaa944/ExpenseTracker/internal/config"
	"github.com/ebisaa944/ExpenseTracker/internal/events"
	"github.com/ebisaa944/ExpenseTracker/internal/export"
	"github.com/ebisaa944/ExpenseTracker/internal/log"
	"github.com/ebisaa944/ExpenseTracker/internal/storage"
)

func main() {
	// Load .env for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting tracker-worker", log.FieldOperation, log.OpStartup)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ledger, err := export.NewCSVLedger(cfg.ExportDir)
	if err != nil {
		logger.Error("Failed to initialize CSV ledger", log.FieldError, err, "dir", cfg.ExportDir)
		os.Exit(1)
	}
	targets := []export.Target{ledger}

	// The Sheets mirror is optional and only attached when a spreadsheet
	// is configured.
	if cfg.GoogleSpreadsheetID != "" {
		mirror, err := export.NewSheetsMirror(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Sheets mirror", log.FieldError, err)
			os.Exit(1)
		}
		targets = append(targets, mirror)
		logger.Info("Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Sheets mirror disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	eventsClient, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize events client", log.FieldError, err)
		os.Exit(1)
	}
	defer eventsClient.Close()
	eventsClient.SetPrefetch(cfg.SyncBatchSize)

	worker := export.NewWorker(repo, eventsClient, targets, cfg.SyncInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue, "snapshot_interval", cfg.SyncInterval.String())
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully", log.FieldOperation, log.OpShutdown)
}
