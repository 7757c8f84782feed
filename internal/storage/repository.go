package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"moneymanager/internal/core"
	"moneymanager/internal/secret"
	ports "moneymanager/internal/sheets"
)

var _ ports.TransactionStore = (*SQLiteRepository)(nil)

// SQLiteRepository is the local system of record. Every write also enqueues an
// outbox entry so the row can be mirrored to Google Sheets.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	secret  *secret.Verifier
	now     func() time.Time
}

// Written describes a committed write and the outbox entry it created.
type Written struct {
	Transaction core.Transaction
	Version     int64
	QueueID     int64
}

func NewSQLiteRepository(dbPath string, v *secret.Verifier) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps the write+enqueue transactions serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		secret:  v,
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FetchAll implements sheets.TransactionFetcher.
func (r *SQLiteRepository) FetchAll(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := r.queries.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Append implements sheets.TransactionAppender.
func (r *SQLiteRepository) Append(ctx context.Context, userID string, tx core.Transaction) error {
	_, err := r.AppendQueued(ctx, userID, tx)
	return err
}

// AppendQueued stores tx and its outbox entry in one SQL transaction.
func (r *SQLiteRepository) AppendQueued(ctx context.Context, userID string, tx core.Transaction) (Written, error) {
	if err := tx.Validate(); err != nil {
		return Written{}, err
	}
	var w Written
	err := r.inTx(ctx, func(q *Queries) error {
		now := r.now()
		if err := q.InsertTransaction(ctx, userID, tx, now); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		id, err := q.EnqueueSync(ctx, tx.ID, userID, 1, now)
		if err != nil {
			return fmt.Errorf("enqueue sync: %w", err)
		}
		w = Written{Transaction: tx, Version: 1, QueueID: id}
		return nil
	})
	if err != nil {
		return Written{}, err
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"queue_id", w.QueueID)
	return w, nil
}

// Update implements sheets.TransactionUpdater.
func (r *SQLiteRepository) Update(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error) {
	w, err := r.UpdateQueued(ctx, userID, id, updates, sharedSecret)
	return w.Transaction, err
}

// UpdateQueued checks the secret, applies updates and enqueues the new version.
func (r *SQLiteRepository) UpdateQueued(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (Written, error) {
	if err := r.secret.Verify(sharedSecret); err != nil {
		return Written{}, ports.ErrInvalidSecret
	}
	var w Written
	err := r.inTx(ctx, func(q *Queries) error {
		row, err := q.GetUserTransaction(ctx, userID, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ports.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get transaction: %w", err)
		}
		updated := updates.Apply(row.Transaction)
		now := r.now()
		version, err := q.UpdateTransaction(ctx, userID, updated, now)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		qid, err := q.EnqueueSync(ctx, id, userID, version, now)
		if err != nil {
			return fmt.Errorf("enqueue sync: %w", err)
		}
		w = Written{Transaction: updated, Version: version, QueueID: qid}
		return nil
	})
	if err != nil {
		return Written{}, err
	}
	slog.InfoContext(ctx, "Transaction updated in SQLite",
		"id", id,
		"fields", updates.Fields(),
		"version", w.Version)
	return w, nil
}

// GetTransaction returns a row by id regardless of owner.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (Row, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, ports.ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return row, nil
}

// Users lists every user id with stored rows.
func (r *SQLiteRepository) Users(ctx context.Context) ([]string, error) {
	return r.queries.ListUsers(ctx)
}

// DequeueSyncBatch returns up to limit pending outbox entries that are due.
func (r *SQLiteRepository) DequeueSyncBatch(ctx context.Context, limit int64) ([]SyncQueue, error) {
	items, err := r.queries.DequeueSyncBatch(ctx, limit, r.now())
	if err != nil {
		return nil, fmt.Errorf("dequeue sync batch: %w", err)
	}
	return items, nil
}

func (r *SQLiteRepository) GetSyncItem(ctx context.Context, id int64) (SyncQueue, error) {
	return r.queries.GetSyncItem(ctx, id)
}

func (r *SQLiteRepository) MarkSyncProcessing(ctx context.Context, id int64) error {
	return r.queries.SetSyncStatus(ctx, id, SyncProcessing, r.now())
}

// MarkSyncComplete closes the entry and any older open entries of the same
// transaction, since the pushed row already carries their changes.
func (r *SQLiteRepository) MarkSyncComplete(ctx context.Context, item SyncQueue) error {
	if err := r.queries.SetSyncStatus(ctx, item.ID, SyncCompleted, r.now()); err != nil {
		return fmt.Errorf("mark sync complete: %w", err)
	}
	if err := r.queries.CompleteSyncUpTo(ctx, item.TransactionID, item.Version, r.now()); err != nil {
		return fmt.Errorf("complete older syncs: %w", err)
	}
	return nil
}

// IncrementSyncAttempt puts the entry back in the queue, due after backoff.
func (r *SQLiteRepository) IncrementSyncAttempt(ctx context.Context, id int64, lastError string, backoff time.Duration) error {
	now := r.now()
	return r.queries.IncrementSyncAttempt(ctx, id, lastError, now.Add(backoff), now)
}

func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id int64, lastError string) error {
	if err := r.queries.MarkSyncFailed(ctx, id, lastError, r.now()); err != nil {
		return fmt.Errorf("mark sync failed: %w", err)
	}
	slog.WarnContext(ctx, "Sync item marked failed", "id", id, "error", lastError)
	return nil
}

func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	return r.queries.ResetStaleProcessing(ctx, r.now())
}

func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	return r.queries.RetryFailedSyncs(ctx, r.now())
}

func (r *SQLiteRepository) CleanupCompletedSyncs(ctx context.Context, before time.Time) (int64, error) {
	return r.queries.CleanupCompletedSyncs(ctx, before)
}

func (r *SQLiteRepository) GetSyncQueueStats(ctx context.Context) (SyncQueueStats, error) {
	return r.queries.GetSyncQueueStats(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
