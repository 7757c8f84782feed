package worker

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
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

type recordingSheet struct {
	pingErr error
	rows    []core.Transaction
}

func (s *recordingSheet) Upsert(_ context.Context, _ string, tx core.Transaction) error {
	s.rows = append(s.rows, tx)
	return nil
}

func (s *recordingSheet) Ping(context.Context) error { return s.pingErr }

func setup(t *testing.T, sheet *recordingSheet) (*SyncWorker, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"), secret.MustNew("1234"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	p := services.NewSyncProcessor(repo, sheet, services.DefaultSyncProcessorConfig())
	return NewSyncWorker(p, sheet), repo
}

func deposit(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC),
		Type:        core.Deposit,
		Amount:      decimal.NewFromInt(1200),
		BankAccount: "HNB Bank",
		IsPaid:      true,
	}
}

func TestStartupSyncCheckDrainsBacklog(t *testing.T) {
	ctx := context.Background()
	sheet := &recordingSheet{}
	w, repo := setup(t, sheet)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Append(ctx, "u1", deposit(id)))
	}

	require.NoError(t, w.StartupSyncCheck(ctx))
	assert.Len(t, sheet.rows, 3)

	stats, err := repo.GetSyncQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Completed)
}

func TestStartupSyncCheckFailsWhenSheetUnreachable(t *testing.T) {
	sheet := &recordingSheet{pingErr: errors.New("403 forbidden")}
	w, _ := setup(t, sheet)

	err := w.StartupSyncCheck(context.Background())
	assert.ErrorContains(t, err, "google sheets not reachable")
}

func TestHandleSyncMessage(t *testing.T) {
	ctx := context.Background()
	sheet := &recordingSheet{}
	w, repo := setup(t, sheet)

	written, err := repo.AppendQueued(ctx, "u1", deposit("a"))
	require.NoError(t, err)

	msg := amqp.NewTransactionSyncMessage(written.QueueID, "a", "u1", written.Version)
	require.NoError(t, w.HandleSyncMessage(ctx, msg))
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "a", sheet.rows[0].ID)
}
