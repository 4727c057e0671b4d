package auth

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory API key store for demo/development mode.
type MemoryStore struct {
	byHash map[string]*APIKey
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory key store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]*APIKey)}
}

func (m *MemoryStore) Create(ctx context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.byHash[key.Hash] = &cp
	return nil
}

func (m *MemoryStore) GetByHash(ctx context.Context, hash string) (*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key, ok := m.byHash[hash]; ok {
		cp := *key
		return &cp, nil
	}
	return nil, ErrKeyNotFound
}

func (m *MemoryStore) GetByUser(ctx context.Context, userID string) ([]*APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []*APIKey
	for _, key := range m.byHash {
		if key.UserID == userID {
			cp := *key
			keys = append(keys, &cp)
		}
	}
	return keys, nil
}

func (m *MemoryStore) Update(ctx context.Context, key *APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *key
	m.byHash[key.Hash] = &cp
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for hash, key := range m.byHash {
		if key.ID == id {
			delete(m.byHash, hash)
			return nil
		}
	}
	return ErrKeyNotFound
}
