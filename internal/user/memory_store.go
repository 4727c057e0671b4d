package user

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory user store for demo/development mode.
type MemoryStore struct {
	users map[string]*User
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

func (m *MemoryStore) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}

	cp := *u
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.users[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

// ApplyCreditDelta atomically adjusts a user's cached balance.
// A negative delta that would take the balance below zero fails with
// ErrInsufficientCredits and leaves the balance unchanged. Used by the
// in-memory ledger store; the Postgres path adjusts users.credits inside
// its own transaction instead.
func (m *MemoryStore) ApplyCreditDelta(ctx context.Context, userID string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if u.Credits+delta < 0 {
		return u.Credits, ErrInsufficientCredits
	}
	u.Credits += delta
	u.UpdatedAt = time.Now()
	return u.Credits, nil
}

// Credits returns the cached balance for a user.
func (m *MemoryStore) Credits(ctx context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return u.Credits, nil
}
