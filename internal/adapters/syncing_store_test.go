package adapters

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/secret"
	"moneymanager/internal/sheets"
	"moneymanager/internal/storage"
)

type fakePublisher struct {
	err  error
	msgs []*amqp.TransactionSyncMessage
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, msg *amqp.TransactionSyncMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type publishCount struct{ ok, failed int }

func (c *publishCount) RecordPublish(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), secret.MustNew("4321"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func withdrawal(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        time.Date(2025, 9, 2, 17, 0, 0, 0, time.UTC),
		Type:        core.Withdrawal,
		Amount:      decimal.NewFromInt(75),
		BankAccount: "Commercial Bank",
		Reason:      "Fuel",
		IsPaid:      true,
	}
}

func TestSyncingStorePublishesEveryWrite(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	rec := &publishCount{}
	store := NewSyncingStore(newRepo(t), pub, rec)

	require.NoError(t, store.Append(ctx, "u1", withdrawal("w1")))
	reason := "Diesel"
	got, err := store.Update(ctx, "u1", "w1", core.FieldUpdates{Reason: &reason}, "4321")
	require.NoError(t, err)
	assert.Equal(t, "Diesel", got.Reason)

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "w1", pub.msgs[0].TransactionID)
	assert.Equal(t, int64(1), pub.msgs[0].Version)
	assert.Equal(t, int64(2), pub.msgs[1].Version)
	assert.Equal(t, "u1", pub.msgs[1].UserID)
	assert.Equal(t, 2, rec.ok)
}

func TestSyncingStoreKeepsWriteWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	rec := &publishCount{}
	store := NewSyncingStore(repo, &fakePublisher{err: errors.New("broker down")}, rec)

	require.NoError(t, store.Append(ctx, "u1", withdrawal("w1")))
	assert.Equal(t, 1, rec.failed)

	txs, err := store.FetchAll(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	stats, err := repo.GetSyncQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
}

func TestSyncingStoreDoesNotPublishRejectedUpdate(t *testing.T) {
	ctx := context.Background()
	pub := &fakePublisher{}
	store := NewSyncingStore(newRepo(t), pub, nil)
	require.NoError(t, store.Append(ctx, "u1", withdrawal("w1")))

	paid := true
	_, err := store.Update(ctx, "u1", "w1", core.FieldUpdates{IsPaid: &paid}, "0000")
	assert.ErrorIs(t, err, sheets.ErrInvalidSecret)
	assert.Len(t, pub.msgs, 1)
}

func TestSyncingStoreWithoutPublisher(t *testing.T) {
	store := NewSyncingStore(newRepo(t), nil, nil)
	require.NoError(t, store.Append(context.Background(), "u1", withdrawal("w1")))
	assert.NoError(t, store.Ping(context.Background()))
}
