package worker

import (
	"context"
	"fmt"
	"log/slog"

	"moneymanager/internal/amqp"
	applog "moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/sheets"
)

// startupBatches bounds how many sweep batches run before the worker starts
// consuming.
const startupBatches = 5

// SyncWorker handles synchronization of transactions from SQLite to Google Sheets
type SyncWorker struct {
	processor *services.SyncProcessor
	sheet     sheets.HealthChecker
}

func NewSyncWorker(processor *services.SyncProcessor, sheet sheets.HealthChecker) *SyncWorker {
	return &SyncWorker{
		processor: processor,
		sheet:     sheet,
	}
}

// HandleSyncMessage processes a single transaction sync message from AMQP
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		applog.FieldQueueID, msg.QueueID,
		applog.FieldTransactionID, msg.TransactionID,
		"version", msg.Version)

	if err := w.processor.HandleMessage(ctx, msg); err != nil {
		return fmt.Errorf("handle sync message: %w", err)
	}
	return nil
}

// StartupSyncCheck verifies the sheet is reachable and drains entries left
// pending while the worker was down.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if w.sheet != nil {
		if err := w.sheet.Ping(ctx); err != nil {
			return fmt.Errorf("google sheets not reachable: %w", err)
		}
	}

	synced := 0
	for i := 0; i < startupBatches; i++ {
		n := w.processor.ProcessBatch(ctx)
		if n == 0 {
			break
		}
		synced += n
	}

	stats, err := w.processor.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get sync queue stats: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		applog.FieldOperation, applog.OpStartup,
		"synced", synced,
		"pending", stats.Pending,
		"failed", stats.Failed)
	return nil
}
