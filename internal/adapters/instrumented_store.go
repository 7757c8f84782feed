package adapters

import (
	"context"
	"errors"

	"moneymanager/internal/core"
	"moneymanager/internal/sheets"
)

var (
	_ sheets.TransactionStore = (*InstrumentedStore)(nil)
	_ sheets.HealthChecker    = (*InstrumentedStore)(nil)
)

// StoreRecorder counts store calls by operation.
type StoreRecorder interface {
	RecordStoreCall(operation string, err error)
}

// StoreBackend is a transaction store that can report readiness.
type StoreBackend interface {
	sheets.TransactionStore
	sheets.HealthChecker
}

// InstrumentedStore counts every call to the wrapped store. A wrong secret
// or unknown id is a caller mistake and counts as a successful call.
type InstrumentedStore struct {
	next StoreBackend
	rec  StoreRecorder
}

func NewInstrumentedStore(next StoreBackend, rec StoreRecorder) *InstrumentedStore {
	return &InstrumentedStore{next: next, rec: rec}
}

func (s *InstrumentedStore) FetchAll(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.next.FetchAll(ctx, userID)
	s.record("fetch", err)
	return txs, err
}

func (s *InstrumentedStore) Append(ctx context.Context, userID string, tx core.Transaction) error {
	err := s.next.Append(ctx, userID, tx)
	s.record("append", err)
	return err
}

func (s *InstrumentedStore) Update(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error) {
	tx, err := s.next.Update(ctx, userID, id, updates, sharedSecret)
	s.record("update", err)
	return tx, err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	err := s.next.Ping(ctx)
	s.record("ping", err)
	return err
}

func (s *InstrumentedStore) record(op string, err error) {
	if errors.Is(err, sheets.ErrInvalidSecret) || errors.Is(err, sheets.ErrNotFound) {
		err = nil
	}
	s.rec.RecordStoreCall(op, err)
}
