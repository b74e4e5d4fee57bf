package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kakeibo/internal/amqp"
	"kakeibo/internal/config"
	apphttp "kakeibo/internal/http"
	applog "kakeibo/internal/log"
	"kakeibo/internal/storage"
	"kakeibo/internal/store"
	"kakeibo/internal/store/memory"
)

func main() {
	// .env is for local development; missing file is fine.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Tee log records to the log dir so the download-log endpoint has a
	// file to serve.
	logFile, err := applog.OpenLogFile(cfg.LogDir)
	if err != nil {
		slog.Error("Failed to open log file", "error", err, "dir", cfg.LogDir)
		os.Exit(1)
	}
	defer logFile.Close()

	logger := applog.New(applog.Config{
		Component: applog.ComponentApp,
		Handler:   applog.NewTeeHandler(logFile, slog.LevelInfo),
	})
	applog.SetDefault(logger)

	var st store.Store
	switch cfg.DataBackend {
	case "memory":
		st = memory.New()
		logger.Info("Initialized memory backend")
	default:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		st = repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	}

	// Ledger events feed the mirror worker; the API runs fine without a
	// broker, writes just go unmirrored until one is back.
	var publisher apphttp.EventPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, ledger events disabled", "error", err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, st, apphttp.Options{
		Publisher:  publisher,
		Logger:     logger.WithComponent(applog.ComponentHTTP),
		BackupDir:  cfg.BackupDir,
		BackupKeep: cfg.BackupKeep,
		LogDir:     cfg.LogDir,
	})
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
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting kakeibo server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
