package events

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	markers map[string]*Marker
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{markers: make(map[string]*Marker)}
}

func (m *MemoryStore) Admit(ctx context.Context, eventID, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.markers[eventID]; ok {
		if existing.Status != StatusError {
			return ErrDuplicateEvent
		}
		existing.Status = StatusProcessing
		existing.ReceivedAt = time.Now()
		existing.ProcessedAt = nil
		return nil
	}
	m.markers[eventID] = &Marker{
		EventID:    eventID,
		Status:     StatusProcessing,
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
	return nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, eventID string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	marker, ok := m.markers[eventID]
	if !ok {
		return ErrEventNotFound
	}
	marker.Status = status
	now := time.Now()
	marker.ProcessedAt = &now
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, eventID string) (*Marker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	marker, ok := m.markers[eventID]
	if !ok {
		return nil, ErrEventNotFound
	}
	cp := *marker
	return &cp, nil
}

func (m *MemoryStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[Status]int64)
	for _, marker := range m.markers {
		counts[marker.Status]++
	}
	return counts, nil
}
