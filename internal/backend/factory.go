package backend

import (
	"context"
	"fmt"
	"log/slog"

	"moneymanager/internal/adapters"
	"moneymanager/internal/amqp"
	"moneymanager/internal/secret"
	gsheet "moneymanager/internal/sheets/google"
	"moneymanager/internal/sheets/memory"
	"moneymanager/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	rec    adapters.PublishRecorder
}

// NewFactory creates a new backend factory. rec may be nil.
func NewFactory(logger *slog.Logger, rec adapters.PublishRecorder) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		rec:    rec,
	}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config, v *secret.Verifier) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, secret.ErrNotConfigured
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config, v)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config, v)
	case MemoryBackend:
		return f.createMemoryBackend(config, v)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config, v *secret.Verifier) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, v)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// The broker is optional; writes stay in the outbox until a worker runs.
	var publisher adapters.Publisher
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without publishing", "error", err)
		} else {
			publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: adapters.NewSyncingStore(repo, publisher, f.rec),
		Cleanup: func() error {
			if amqpClient != nil {
				if err := amqpClient.Close(); err != nil {
					f.logger.Warn("Failed to close AMQP client", "error", err)
				}
			}
			return repo.Close()
		},
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config, v *secret.Verifier) (*BackendResult, error) {
	creds := gsheet.Credentials{
		JSON: config.GoogleServiceAccountJSON,
		File: config.GoogleServiceAccountFile,
	}
	cli, err := gsheet.Dial(ctx, config.GoogleSpreadsheetID, config.GoogleSheetName, creds, v)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "spreadsheet_id", config.GoogleSpreadsheetID)
	return &BackendResult{Backend: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config, v *secret.Verifier) (*BackendResult, error) {
	store := memory.New(v)
	if config.SeedFile != "" {
		var err error
		store, err = memory.NewFromFile(config.SeedFile, v)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed file: %w", err)
		}
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile, "users", len(store.Users()))
	return &BackendResult{Backend: store}, nil
}
