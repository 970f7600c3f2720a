package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finledger/internal/amqp"
	"finledger/internal/config"
	applog "finledger/internal/log"
)

// Standalone consumer for the import progress queue. It tails every update
// published by the HTTP server and logs it, so an operator can follow a
// running import without polling the API.
func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentAMQP)
	applog.SetDefault(logger)

	logger.Info("Starting progress-watcher")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for progress-watcher")
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = client.ConsumeImportProgress(ctx, func(msg *amqp.ImportProgressMessage) error {
		logger.Info("Import progress",
			"job_id", msg.JobID,
			"user_id", msg.UserID,
			"completed", msg.Completed,
			"total", msg.Total,
			"done", msg.Done)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Progress-watcher shutdown complete")
}
