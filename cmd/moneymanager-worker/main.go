package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"moneymanager/internal/amqp"
	"moneymanager/internal/config"
	applog "moneymanager/internal/log"
	gsheet "moneymanager/internal/sheets/google"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
	"moneymanager/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     cfg.SlogLevel(),
		Format:    cfg.LogFormat,
		Component: applog.ComponentWorker,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	logger.InfoContext(context.Background(), "Starting moneymanager-worker")
	if err := run(cfg, logger); err != nil {
		logger.ErrorContext(context.Background(), "Worker exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.InfoContext(context.Background(), "Worker shutdown complete")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.GoogleSpreadsheetID == "" {
		return errors.New("GOOGLE_SPREADSHEET_ID is required by the sync worker")
	}
	verifier, err := cfg.Verifier()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, verifier)
	if err != nil {
		return fmt.Errorf("initialize SQLite repository %s: %w", cfg.SQLiteDBPath, err)
	}
	defer repo.Close()

	sheetsClient, err := gsheet.Dial(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	}, verifier)
	if err != nil {
		return fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	logger.WithComponent(applog.ComponentSheets).InfoContext(ctx, "Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID)

	procCfg := services.DefaultSyncProcessorConfig()
	procCfg.SweepSchedule = cfg.SyncSchedule
	procCfg.BatchSize = cfg.SyncBatchSize
	procCfg.MaxAttempts = cfg.SyncMaxAttempts
	processor := services.NewSyncProcessor(repo, sheetsClient, procCfg)
	syncWorker := worker.NewSyncWorker(processor, sheetsClient)

	// A sheet that is down at startup is retried by the sweep.
	logger.InfoContext(ctx, "Performing startup sync check...")
	if err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.ErrorContext(ctx, "Failed startup sync check", applog.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		return err
	}

	amqpLog := logger.WithComponent(applog.ComponentAMQP)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// Without the broker the sweep alone drains the outbox.
			amqpLog.WarnContext(ctx, "AMQP unavailable, relying on scheduled sweep", applog.FieldError, err)
		} else {
			defer amqpClient.Close()
			g.Go(func() error {
				err := amqpClient.ConsumeTransactionSync(gctx, syncWorker.HandleSyncMessage)
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("message consumption failed: %w", err)
				}
				return nil
			})
		}
	} else {
		amqpLog.InfoContext(ctx, "AMQP disabled, relying on scheduled sweep")
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(context.Background(), "Shutting down worker", applog.FieldOperation, applog.OpShutdown)
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return processor.Stop(stopCtx)
	})
	return g.Wait()
}
