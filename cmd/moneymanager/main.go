package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"moneymanager/internal/adapters"
	"moneymanager/internal/backend"
	"moneymanager/internal/cache"
	"moneymanager/internal/config"
	apphttp "moneymanager/internal/http"
	applog "moneymanager/internal/log"
	"moneymanager/internal/metrics"
	"moneymanager/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.New(applog.Config{
		Level:     cfg.SlogLevel(),
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    os.Stdout,
	})
	applog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.ErrorContext(context.Background(), "Server exited with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.InfoContext(context.Background(), "Server stopped gracefully")
}

func run(cfg *config.Config, logger *applog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	verifier, err := cfg.Verifier()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentStorage).Logger, m).
		CreateBackend(ctx, backendCfg, verifier)
	if err != nil {
		return err
	}
	defer func() {
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.WarnContext(ctx, "Backend cleanup failed", applog.FieldError, err)
			}
		}
	}()
	logger.InfoContext(ctx, "Initialized data backend", "backend", backendCfg.Type.String())

	store := cache.NewTransactionStore(adapters.NewInstrumentedStore(res.Backend, m), cfg.CacheSize, cfg.CacheTTL, m)
	caches := cache.NewManager()
	caches.Register(store)
	if cfg.CacheTTL > 0 {
		caches.StartCleanup(cfg.CacheTTL)
	}
	defer caches.Stop()

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Ledger:       services.NewLedgerService(store, cfg.Accounts, cfg.Location()),
		Transactions: services.NewTransactionService(store, cfg.Accounts, verifier),
		Health:       store,
		Metrics:      m,
		Logger:       logger,
		UserID:       cfg.UserID,
	}, apphttp.Options{
		MutationsPerMinute: cfg.MutationsPerMinute,
		PINMaxFailures:     cfg.PINMaxFailures,
		PINLockout:         cfg.PINLockout,
		TrustedProxies:     cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 15 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "Starting moneymanager server",
			"port", cfg.Port,
			"backend", backendCfg.Type.String(),
			"timezone", cfg.Timezone)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.InfoContext(context.Background(), "Shutting down server", applog.FieldOperation, applog.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
