package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/secret"
	"moneymanager/internal/storage"
)

type fakeSyncer struct {
	mu    sync.Mutex
	fail  error
	calls []core.Transaction
}

func (f *fakeSyncer) Upsert(_ context.Context, _ string, tx core.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, tx)
	return nil
}

func (f *fakeSyncer) pushed() []core.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.Transaction(nil), f.calls...)
}

func newOutbox(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "outbox.db"), secret.MustNew("9999"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func withdrawal(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC),
		Type:        core.Withdrawal,
		Amount:      decimal.NewFromInt(300),
		BankAccount: "Wallet",
		Reason:      "Lunch",
	}
}

func testProcessorConfig() SyncProcessorConfig {
	cfg := DefaultSyncProcessorConfig()
	cfg.RetryBackoff = 0
	return cfg
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	cfg := DefaultSyncProcessorConfig()
	assert.Equal(t, "@every 10s", cfg.SweepSchedule)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RetryBackoff)
	assert.Equal(t, "@hourly", cfg.CleanupSchedule)
	assert.Equal(t, 24*time.Hour, cfg.CleanupAge)
}

func TestProcessBatchPushesLatestVersion(t *testing.T) {
	ctx := context.Background()
	repo := newOutbox(t)
	syncer := &fakeSyncer{}
	p := NewSyncProcessor(repo, syncer, testProcessorConfig())

	require.NoError(t, repo.Append(ctx, "u1", withdrawal("w1")))
	reason := "Dinner"
	_, err := repo.Update(ctx, "u1", "w1", core.FieldUpdates{Reason: &reason}, "9999")
	require.NoError(t, err)

	assert.Equal(t, 1, p.ProcessBatch(ctx))

	pushed := syncer.pushed()
	require.Len(t, pushed, 1)
	assert.Equal(t, "Dinner", pushed[0].Reason)

	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncQueueStats{Completed: 2}, stats)
	assert.Equal(t, 0, p.ProcessBatch(ctx))
}

func TestProcessBatchRetriesThenFails(t *testing.T) {
	ctx := context.Background()
	repo := newOutbox(t)
	syncer := &fakeSyncer{fail: errors.New("quota exceeded")}
	p := NewSyncProcessor(repo, syncer, testProcessorConfig())

	require.NoError(t, repo.Append(ctx, "u1", withdrawal("w1")))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 0, p.ProcessBatch(ctx))
	}
	stats, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Failed)

	syncer.fail = nil
	n, err := p.RetryFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, p.ProcessBatch(ctx))
	assert.Len(t, syncer.pushed(), 1)
}

func TestHandleMessage(t *testing.T) {
	ctx := context.Background()
	repo := newOutbox(t)
	syncer := &fakeSyncer{}
	p := NewSyncProcessor(repo, syncer, testProcessorConfig())

	w, err := repo.AppendQueued(ctx, "u1", withdrawal("w1"))
	require.NoError(t, err)
	msg := amqp.NewTransactionSyncMessage(w.QueueID, "w1", "u1", w.Version)

	require.NoError(t, p.HandleMessage(ctx, msg))
	require.Len(t, syncer.pushed(), 1)

	// Redelivery of a completed item is a no-op.
	require.NoError(t, p.HandleMessage(ctx, msg))
	assert.Len(t, syncer.pushed(), 1)

	unknown := amqp.NewTransactionSyncMessage(9999, "w1", "u1", 1)
	assert.NoError(t, p.HandleMessage(ctx, unknown))
}

func TestHandleMessageRecordsFailureWithoutRequeue(t *testing.T) {
	ctx := context.Background()
	repo := newOutbox(t)
	p := NewSyncProcessor(repo, &fakeSyncer{fail: errors.New("offline")}, testProcessorConfig())

	w, err := repo.AppendQueued(ctx, "u1", withdrawal("w1"))
	require.NoError(t, err)

	err = p.HandleMessage(ctx, amqp.NewTransactionSyncMessage(w.QueueID, "w1", "u1", w.Version))
	require.NoError(t, err)

	item, err := repo.GetSyncItem(ctx, w.QueueID)
	require.NoError(t, err)
	assert.Equal(t, storage.SyncPending, item.Status)
	assert.Equal(t, int64(1), item.Attempts)
	assert.Equal(t, "upsert to sheets: offline", item.LastError.String)
}

func TestSyncProcessorStartStop(t *testing.T) {
	ctx := context.Background()
	p := NewSyncProcessor(newOutbox(t), &fakeSyncer{}, testProcessorConfig())

	assert.False(t, p.IsRunning())
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(stopCtx))
}

func TestSyncProcessorRejectsBadSchedule(t *testing.T) {
	cfg := testProcessorConfig()
	cfg.SweepSchedule = "every now and then"
	p := NewSyncProcessor(newOutbox(t), &fakeSyncer{}, cfg)

	assert.Error(t, p.Start(context.Background()))
	assert.False(t, p.IsRunning())
}
