package adapters

import (
	"context"
	"log/slog"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
	"moneymanager/internal/sheets"
	"moneymanager/internal/storage"
)

var (
	_ sheets.TransactionStore = (*SyncingStore)(nil)
	_ sheets.HealthChecker    = (*SyncingStore)(nil)
)

// OutboxRepository is the part of the SQLite repository that writes a row
// together with its outbox entry.
type OutboxRepository interface {
	sheets.TransactionFetcher
	AppendQueued(ctx context.Context, userID string, tx core.Transaction) (storage.Written, error)
	UpdateQueued(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (storage.Written, error)
	Ping(ctx context.Context) error
}

type Publisher interface {
	PublishTransactionSync(ctx context.Context, msg *amqp.TransactionSyncMessage) error
}

// PublishRecorder counts publish outcomes.
type PublishRecorder interface {
	RecordPublish(err error)
}

// SyncingStore makes the SQLite repository the system of record and notifies
// the sync worker of every write. A failed publish is only logged: the entry
// stays in the outbox and the worker's sweep picks it up.
type SyncingStore struct {
	repo      OutboxRepository
	publisher Publisher
	rec       PublishRecorder
}

// NewSyncingStore wraps repo. publisher and rec may be nil; without a
// publisher the worker sweep alone drives synchronization.
func NewSyncingStore(repo OutboxRepository, publisher Publisher, rec PublishRecorder) *SyncingStore {
	return &SyncingStore{repo: repo, publisher: publisher, rec: rec}
}

func (s *SyncingStore) FetchAll(ctx context.Context, userID string) ([]core.Transaction, error) {
	return s.repo.FetchAll(ctx, userID)
}

func (s *SyncingStore) Append(ctx context.Context, userID string, tx core.Transaction) error {
	w, err := s.repo.AppendQueued(ctx, userID, tx)
	if err != nil {
		return err
	}
	s.publish(ctx, userID, w)
	return nil
}

func (s *SyncingStore) Update(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error) {
	w, err := s.repo.UpdateQueued(ctx, userID, id, updates, sharedSecret)
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, userID, w)
	return w.Transaction, nil
}

func (s *SyncingStore) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *SyncingStore) publish(ctx context.Context, userID string, w storage.Written) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewTransactionSyncMessage(w.QueueID, w.Transaction.ID, userID, w.Version)
	err := s.publisher.PublishTransactionSync(ctx, msg)
	if s.rec != nil {
		s.rec.RecordPublish(err)
	}
	if err != nil {
		slog.WarnContext(ctx, "Failed to publish sync message, worker sweep will retry",
			applog.FieldTransactionID, w.Transaction.ID,
			applog.FieldQueueID, w.QueueID,
			applog.FieldError, err)
		return
	}
	slog.DebugContext(ctx, "Published sync message",
		applog.FieldTransactionID, w.Transaction.ID,
		"version", w.Version)
}
