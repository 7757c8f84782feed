// Package cache keeps recently fetched transaction sets in memory so
// dashboards do not re-read the whole sheet on every request.
package cache

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"moneymanager/internal/core"
	"moneymanager/internal/sheets"
)

var (
	_ sheets.TransactionStore = (*TransactionStore)(nil)
	_ sheets.HealthChecker    = (*TransactionStore)(nil)
)

// Recorder receives hit and miss counts.
type Recorder interface {
	IncrCacheHit()
	IncrCacheMiss()
}

// TransactionStore caches FetchAll per user in front of another store.
// Any write for a user drops that user's entry.
type TransactionStore struct {
	next  sheets.TransactionStore
	cache *LRUCache[[]core.Transaction]
	group singleflight.Group
	rec   Recorder

	// gen counts writes per user; a fetch that raced a write is not cached.
	mu  sync.Mutex
	gen map[string]uint64
}

// NewTransactionStore wraps next. rec may be nil.
func NewTransactionStore(next sheets.TransactionStore, maxUsers int, ttl time.Duration, rec Recorder) *TransactionStore {
	return &TransactionStore{
		next:  next,
		cache: NewLRUCache[[]core.Transaction](maxUsers, ttl),
		rec:   rec,
		gen:   map[string]uint64{},
	}
}

func (s *TransactionStore) FetchAll(ctx context.Context, userID string) ([]core.Transaction, error) {
	if txs, ok := s.cache.Get(userID); ok {
		s.hit()
		return slices.Clone(txs), nil
	}
	s.miss()

	// Readers only share a fetch that started after the last write they
	// could have observed.
	gen := s.generation(userID)
	key := userID + "\x00" + strconv.FormatUint(gen, 10)
	v, err, _ := s.group.Do(key, func() (any, error) {
		txs, err := s.next.FetchAll(ctx, userID)
		if err != nil {
			return nil, err
		}
		if s.generation(userID) == gen {
			s.cache.Set(userID, txs)
		}
		return txs, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]core.Transaction)), nil
}

func (s *TransactionStore) Append(ctx context.Context, userID string, tx core.Transaction) error {
	defer s.invalidate(userID)
	return s.next.Append(ctx, userID, tx)
}

func (s *TransactionStore) Update(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error) {
	defer s.invalidate(userID)
	return s.next.Update(ctx, userID, id, updates, sharedSecret)
}

// Ping forwards to the wrapped store when it supports health checks.
func (s *TransactionStore) Ping(ctx context.Context) error {
	if hc, ok := s.next.(sheets.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// CleanExpired lets a Manager drop expired entries.
func (s *TransactionStore) CleanExpired() int {
	return s.cache.CleanExpired()
}

func (s *TransactionStore) invalidate(userID string) {
	s.mu.Lock()
	s.gen[userID]++
	s.mu.Unlock()
	s.cache.Delete(userID)
}

func (s *TransactionStore) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[userID]
}

func (s *TransactionStore) hit() {
	if s.rec != nil {
		s.rec.IncrCacheHit()
	}
}

func (s *TransactionStore) miss() {
	if s.rec != nil {
		s.rec.IncrCacheMiss()
	}
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
}

// Manager periodically drops expired entries from registered caches.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	started     atomic.Bool
	once        sync.Once
}

func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, c := range m.caches {
				total += c.CleanExpired()
			}
			if total > 0 {
				slog.Debug("Cleaned expired cache entries", "count", total)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop ends the cleanup routine started by StartCleanup and waits for it.
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.stopCleanup)
		if m.started.Load() {
			<-m.cleanupDone
		}
	})
}
