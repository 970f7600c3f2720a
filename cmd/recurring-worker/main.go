package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"finledger/internal/config"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/storage"
)

// Standalone auto-pay worker. Runs the same due-schedule processing as the
// in-server processor, for deployments that keep the HTTP server and the
// worker as separate processes.
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

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

	schedules := services.NewScheduleService(repo)

	processor := services.NewRecurringProcessor(schedules, repo, services.RecurringProcessorConfig{
		PollInterval: cfg.AutoPayInterval,
		UserID:       cfg.UserID,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Recurring schedule processor configured",
		"interval", cfg.AutoPayInterval,
		"sqlite_db", cfg.SQLiteDBPath)

	// Start processes due schedules immediately, then on every tick.
	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start processor", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Processor shutdown error", "error", err)
	}
	logger.Info("Recurring-worker shutdown complete")
}
