package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"moneymanager/internal/amqp"
	applog "moneymanager/internal/log"
	"moneymanager/internal/resilience"
	"moneymanager/internal/sheets"
	"moneymanager/internal/storage"
)

// SyncQueueStore is the outbox side of the SQLite repository.
type SyncQueueStore interface {
	GetTransaction(ctx context.Context, id string) (storage.Row, error)
	DequeueSyncBatch(ctx context.Context, limit int64) ([]storage.SyncQueue, error)
	GetSyncItem(ctx context.Context, id int64) (storage.SyncQueue, error)
	MarkSyncProcessing(ctx context.Context, id int64) error
	MarkSyncComplete(ctx context.Context, item storage.SyncQueue) error
	IncrementSyncAttempt(ctx context.Context, id int64, lastError string, backoff time.Duration) error
	MarkSyncFailed(ctx context.Context, id int64, lastError string) error
	ResetStaleProcessing(ctx context.Context) error
	RetryFailedSyncs(ctx context.Context) (int64, error)
	CleanupCompletedSyncs(ctx context.Context, before time.Time) (int64, error)
	GetSyncQueueStats(ctx context.Context) (storage.SyncQueueStats, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// SweepSchedule is the cron spec for scanning the outbox (default: every 10s)
	SweepSchedule string

	// BatchSize is the max number of items to process per sweep (default: 10)
	BatchSize int

	// MaxAttempts is how many pushes an item gets before it is marked failed (default: 3)
	MaxAttempts int

	// RetryBackoff is the first retry delay; later retries double it (default: 30s)
	RetryBackoff time.Duration

	// CleanupSchedule is the cron spec for deleting completed items (default: hourly)
	CleanupSchedule string

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		SweepSchedule:   "@every 10s",
		BatchSize:       10,
		MaxAttempts:     3,
		RetryBackoff:    30 * time.Second,
		CleanupSchedule: "@hourly",
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor pushes outbox entries to Google Sheets, either on demand from
// broker messages or from a cron sweep that catches anything the broker missed.
type SyncProcessor struct {
	store  SyncQueueStore
	sheets sheets.TransactionSyncer
	config SyncProcessorConfig

	// One item at a time, whether triggered by a message or the sweep.
	itemMu sync.Mutex

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(store SyncQueueStore, syncer sheets.TransactionSyncer, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		store:  store,
		sheets: syncer,
		config: config,
	}
}

// Start schedules the sweep and cleanup jobs. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cron != nil {
		return errors.New("sync processor is already running")
	}

	if err := p.store.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale processing items", applog.FieldError, err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(p.config.SweepSchedule, func() { p.ProcessBatch(ctx) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", p.config.SweepSchedule, err)
	}
	if _, err := c.AddFunc(p.config.CleanupSchedule, func() { p.Cleanup(ctx) }); err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", p.config.CleanupSchedule, err)
	}
	c.Start()
	p.cron = c

	slog.InfoContext(ctx, "Sync processor started",
		"sweep", p.config.SweepSchedule,
		"cleanup", p.config.CleanupSchedule,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop halts scheduling and waits for a running job to finish.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently scheduled
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cron != nil
}

// ProcessBatch pushes one batch of due outbox entries and returns how many
// succeeded.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.store.DequeueSyncBatch(ctx, int64(p.config.BatchSize))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue sync batch", applog.FieldError, err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))
	ok := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if p.process(ctx, item) {
			ok++
		}
	}
	return ok
}

// HandleMessage processes the outbox entry a broker message points at.
// Entries already completed or failed are acknowledged without work; push
// failures are recorded in the outbox and not returned, so the broker does
// not redeliver what the sweep will retry.
func (p *SyncProcessor) HandleMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	item, err := p.store.GetSyncItem(ctx, msg.QueueID)
	if errors.Is(err, sql.ErrNoRows) {
		slog.WarnContext(ctx, "Sync message for unknown queue item", applog.FieldQueueID, msg.QueueID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get sync item %d: %w", msg.QueueID, err)
	}
	if item.Status == storage.SyncCompleted || item.Status == storage.SyncFailed {
		return nil
	}
	p.process(ctx, item)
	return nil
}

func (p *SyncProcessor) process(ctx context.Context, item storage.SyncQueue) bool {
	p.itemMu.Lock()
	defer p.itemMu.Unlock()

	// A concurrent trigger may have finished this item while we waited.
	if cur, err := p.store.GetSyncItem(ctx, item.ID); err == nil {
		if cur.Status == storage.SyncCompleted || cur.Status == storage.SyncFailed {
			return false
		}
		item = cur
	}

	if err := p.store.MarkSyncProcessing(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark item as processing", applog.FieldQueueID, item.ID, applog.FieldError, err)
		return false
	}

	row, err := p.store.GetTransaction(ctx, item.TransactionID)
	if errors.Is(err, sheets.ErrNotFound) {
		_ = p.store.MarkSyncFailed(ctx, item.ID, "transaction no longer exists")
		return false
	}
	if err != nil {
		p.handleFailure(ctx, item, err)
		return false
	}

	if err := p.sheets.Upsert(ctx, row.UserID, row.Transaction); err != nil {
		p.handleFailure(ctx, item, fmt.Errorf("upsert to sheets: %w", err))
		return false
	}

	// The pushed row is the latest version, which covers older entries.
	if row.Version > item.Version {
		item.Version = row.Version
	}
	if err := p.store.MarkSyncComplete(ctx, item); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync complete", applog.FieldQueueID, item.ID, applog.FieldError, err)
	}
	slog.InfoContext(ctx, "Synced transaction to Google Sheets",
		applog.FieldOperation, applog.OpSync,
		applog.FieldTransactionID, item.TransactionID,
		"version", row.Version)
	return true
}

// handleFailure schedules a retry with exponential backoff, or marks the item
// failed once it has used its attempts.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncQueue, processErr error) {
	attempt := item.Attempts + 1
	slog.WarnContext(ctx, "Sync processing failed",
		applog.FieldQueueID, item.ID,
		applog.FieldTransactionID, item.TransactionID,
		"attempt", attempt,
		applog.FieldError, processErr)

	if attempt >= int64(p.config.MaxAttempts) {
		if err := p.store.MarkSyncFailed(ctx, item.ID, processErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark sync as failed", applog.FieldQueueID, item.ID, applog.FieldError, err)
		}
		slog.ErrorContext(ctx, "Sync item failed permanently after max attempts",
			applog.FieldQueueID, item.ID,
			applog.FieldTransactionID, item.TransactionID,
			"attempts", attempt)
		return
	}
	backoff := resilience.Backoff(p.config.RetryBackoff, int(item.Attempts))
	if err := p.store.IncrementSyncAttempt(ctx, item.ID, processErr.Error(), backoff); err != nil {
		slog.ErrorContext(ctx, "Failed to increment sync attempt", applog.FieldQueueID, item.ID, applog.FieldError, err)
	}
}

// Cleanup removes completed items older than CleanupAge.
func (p *SyncProcessor) Cleanup(ctx context.Context) {
	n, err := p.store.CleanupCompletedSyncs(ctx, time.Now().Add(-p.config.CleanupAge))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed syncs", applog.FieldError, err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up completed syncs", "count", n)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncQueueStats, error) {
	return p.store.GetSyncQueueStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.store.RetryFailedSyncs(ctx)
}
