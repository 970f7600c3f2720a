package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"finledger/internal/amqp"
	"finledger/internal/config"
	apphttp "finledger/internal/http"
	"finledger/internal/ledger"
	applog "finledger/internal/log"
	"finledger/internal/services"
	"finledger/internal/sheets"
	"finledger/internal/storage"
	"finledger/internal/suggest"
)

func main() {
	// Load .env for local development; in containers the env is already set.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

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

	engine := ledger.NewEngine(repo)

	// Optional collaborators degrade to disabled when unconfigured.
	var observer services.ProgressObserver = services.NopObserver{}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, import progress will not be published", "error", err)
		} else {
			defer amqpClient.Close()
			observer = amqp.NewProgressPublisher(amqpClient, cfg.UserID)
			logger.Info("AMQP progress publisher initialized",
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	transactions := services.NewTransactionService(engine, repo)
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err := sheets.NewFromEnv(context.Background())
		if err != nil {
			logger.Warn("Failed to initialize Sheets export, continuing without it", "error", err)
		} else {
			transactions.SetExporter(exporter)
			logger.Info("Sheets export initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
		}
	}

	schedules := services.NewScheduleService(repo)
	imports := services.NewImportService(engine, repo, observer)
	budgets := services.NewBudgetService(repo)

	var suggester apphttp.Suggester
	if cfg.GeminiAPIKey != "" {
		client, err := suggest.NewClient(context.Background())
		if err != nil {
			logger.Warn("Failed to initialize suggestion client, continuing without it", "error", err)
		} else {
			suggester = client
			logger.Info("Suggestion client initialized")
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:        repo,
		Transactions: transactions,
		Schedules:    schedules,
		Imports:      imports,
		Budgets:      budgets,
		Suggester:    suggester,
		UserID:       cfg.UserID,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting finledger server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if cfg.AutoPayEnabled {
		processor := services.NewRecurringProcessor(schedules, repo, services.RecurringProcessorConfig{
			PollInterval: cfg.AutoPayInterval,
			UserID:       cfg.UserID,
		})
		g.Go(func() error {
			if err := processor.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return processor.Stop(stopCtx)
		})
		logger.Info("Auto-pay processor enabled", "interval", cfg.AutoPayInterval)
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
