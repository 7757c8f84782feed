// Package cli implements the ledgerctl commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"moneymanager/internal/backend"
	"moneymanager/internal/config"
	applog "moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// setupLogger keeps stdout for command output; logs go to stderr.
func setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	applog.SetDefault(applog.New(applog.Config{
		Level:     level,
		Format:    "text",
		Component: applog.ComponentCLI,
		Output:    os.Stderr,
	}))
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ledger is what the transaction commands run against.
type ledger struct {
	cfg     *config.Config
	reports *services.LedgerService
	txs     *services.TransactionService
	close   func()
}

// openLedger builds the services over the configured backend.
func openLedger(ctx context.Context) (*ledger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	verifier, err := cfg.Verifier()
	if err != nil {
		return nil, err
	}
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(slog.Default(), nil).CreateBackend(ctx, backendCfg, verifier)
	if err != nil {
		return nil, err
	}
	return &ledger{
		cfg:     cfg,
		reports: services.NewLedgerService(res.Backend, cfg.Accounts, cfg.Location()),
		txs:     services.NewTransactionService(res.Backend, cfg.Accounts, verifier),
		close: func() {
			if res.Cleanup != nil {
				if err := res.Cleanup(); err != nil {
					slog.WarnContext(ctx, "Backend cleanup failed", "error", err)
				}
			}
		},
	}, nil
}

// openOutbox opens the SQLite repository directly for queue maintenance.
func openOutbox() (*storage.SQLiteRepository, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DataBackend != config.BackendSQLite {
		return nil, fmt.Errorf("sync queue requires DATA_BACKEND=%s, got %q", config.BackendSQLite, cfg.DataBackend)
	}
	verifier, err := cfg.Verifier()
	if err != nil {
		return nil, err
	}
	return storage.NewSQLiteRepository(cfg.SQLiteDBPath, verifier)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02 15:04")
}
