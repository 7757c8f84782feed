package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"moneymanager/internal/core"
	"moneymanager/internal/secret"
	ports "moneymanager/internal/sheets"
)

var _ ports.TransactionStore = (*Store)(nil)

// Store keeps transactions in process, keyed by user.
type Store struct {
	mu     sync.Mutex
	secret *secret.Verifier
	rows   map[string][]core.Transaction
}

// SeedRow is one entry of a JSON seed file.
type SeedRow struct {
	UserID string `json:"userId"`
	core.Transaction
}

func New(v *secret.Verifier) *Store {
	return &Store{secret: v, rows: map[string][]core.Transaction{}}
}

// NewFromFile loads a JSON array of SeedRow. A missing file yields an empty
// store; a malformed one is an error.
func NewFromFile(path string, v *secret.Verifier) (*Store, error) {
	s := New(v)
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var seed []SeedRow
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	for _, r := range seed {
		if err := r.Transaction.Validate(); err != nil {
			return nil, fmt.Errorf("seed row %q: %w", r.ID, err)
		}
		s.rows[r.UserID] = append(s.rows[r.UserID], r.Transaction)
	}
	return s, nil
}

// FetchAll returns a copy of the user's rows in insertion order.
func (s *Store) FetchAll(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows[userID]...), nil
}

func (s *Store) Append(_ context.Context, userID string, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] = append(s.rows[userID], tx)
	return nil
}

func (s *Store) Update(_ context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error) {
	if err := s.secret.Verify(sharedSecret); err != nil {
		return core.Transaction{}, ports.ErrInvalidSecret
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows[userID]
	for i := range rows {
		if rows[i].ID != id {
			continue
		}
		rows[i] = updates.Apply(rows[i])
		return rows[i], nil
	}
	return core.Transaction{}, ports.ErrNotFound
}

func (s *Store) Ping(context.Context) error { return nil }

// Users returns the ids that own at least one row, sorted.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rows))
	for u := range s.rows {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
