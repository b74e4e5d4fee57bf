package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"kakeibo/internal/amqp"
	"kakeibo/internal/config"
	applog "kakeibo/internal/log"
	"kakeibo/internal/sheets"
	gsheet "kakeibo/internal/sheets/google"
	sheetsmem "kakeibo/internal/sheets/memory"
	"kakeibo/internal/storage"
	"kakeibo/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentWorker,
	})
	applog.SetDefault(logger)

	logger.Info("Starting kakeibo-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Without Google credentials the mirror falls back to an in-process
	// appender, so backups still run and events still drain.
	var appender sheets.AuditAppender
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		appender = client
		logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		appender = sheetsmem.New()
		logger.Info("Google Sheets disabled, mirroring in memory only")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
	}()

	mirror := worker.NewMirrorWorker(repo, appender, cfg.BackupDir, cfg.BackupKeep)

	if err := mirror.Run(ctx, amqpClient, cfg.BackupInterval); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker shutdown complete")
}
