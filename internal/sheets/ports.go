package sheets

import (
	"context"
	"errors"

	"moneymanager/internal/core"
	"moneymanager/internal/secret"
)

var (
	// ErrNotFound is returned by Update when the id does not exist for the user.
	ErrNotFound = errors.New("transaction not found")
	// ErrInvalidSecret is returned by Update when the shared secret mismatches.
	ErrInvalidSecret = secret.ErrInvalid
)

// Ports for outbound adapters.
type (
	// TransactionFetcher returns every transaction recorded for a user.
	TransactionFetcher interface {
		FetchAll(ctx context.Context, userID string) ([]core.Transaction, error)
	}

	TransactionAppender interface {
		Append(ctx context.Context, userID string, tx core.Transaction) error
	}

	// TransactionUpdater applies a partial overwrite to one transaction after
	// checking the shared secret. It returns the updated row.
	TransactionUpdater interface {
		Update(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error)
	}

	// TransactionStore is the full contract the ledger needs from storage.
	TransactionStore interface {
		TransactionFetcher
		TransactionAppender
		TransactionUpdater
	}

	// TransactionSyncer mirrors a row written elsewhere: overwrite by id, or
	// append when the id is new.
	TransactionSyncer interface {
		Upsert(ctx context.Context, userID string, tx core.Transaction) error
	}

	// HealthChecker is implemented by stores that can report readiness.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)
