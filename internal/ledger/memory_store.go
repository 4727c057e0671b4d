package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/nkram/creditrail/internal/idgen"
	"github.com/nkram/creditrail/internal/user"
)

// MemoryStore is an in-memory Store for development and tests. It applies
// balance deltas through the user store under its own lock, so the entry
// append and the balance update are a single atomic unit, same as the
// Postgres transaction.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
	byKey   map[string]*Entry
	users   *user.MemoryStore
}

func NewMemoryStore(users *user.MemoryStore) *MemoryStore {
	return &MemoryStore{
		byKey: make(map[string]*Entry),
		users: users,
	}
}

func (m *MemoryStore) Append(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" {
		if _, used := m.byKey[e.IdempotencyKey]; used {
			return ErrDuplicateKey
		}
	}

	balance, err := m.users.ApplyCreditDelta(ctx, e.UserID, e.Delta)
	if err != nil {
		return err
	}

	e.ID = idgen.WithPrefix("led_")
	e.BalanceAfter = balance
	e.CreatedAt = time.Now()

	cp := *e
	m.entries = append(m.entries, &cp)
	if e.IdempotencyKey != "" {
		m.byKey[e.IdempotencyKey] = &cp
	}
	return nil
}

func (m *MemoryStore) Balance(ctx context.Context, userID string) (int64, error) {
	return m.users.Credits(ctx, userID)
}

func (m *MemoryStore) History(ctx context.Context, userID string, limit, offset int) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Newest first.
	var all []*Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID == userID {
			all = append(all, m.entries[i])
		}
	}
	if offset >= len(all) {
		return []*Entry{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*Entry, len(all))
	for i, e := range all {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (m *MemoryStore) GetByKey(ctx context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byKey[key]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MemoryStore) HasKey(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byKey[key]
	return ok, nil
}

func (m *MemoryStore) SumForUser(ctx context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, e := range m.entries {
		if e.UserID == userID {
			sum += e.Delta
		}
	}
	return sum, nil
}
