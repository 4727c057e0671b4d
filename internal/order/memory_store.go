package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory order store for demo/development mode.
type MemoryStore struct {
	orders map[string]*Order
	mu     sync.RWMutex
}

// NewMemoryStore creates a new in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order)}
}

func (m *MemoryStore) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.OrderID]; ok {
		return ErrOrderExists
	}

	cp := *o
	if cp.Status == "" {
		cp.Status = StatusCreated
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = cp.CreatedAt
	m.orders[cp.OrderID] = &cp
	return nil
}

func (m *MemoryStore) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if o, ok := m.orders[orderID]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, ErrOrderNotFound
}

func (m *MemoryStore) AttachPayment(ctx context.Context, orderID, paymentID, sig string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.PaymentID == "" {
		o.PaymentID = paymentID
		o.PaymentSignature = sig
		o.UpdatedAt = time.Now()
	}
	return nil
}

// SetStatus updates an order's status and payment fields. Used by the
// in-memory reconciliation store, which holds its own admission lock.
func (m *MemoryStore) SetStatus(ctx context.Context, orderID string, status Status, paymentID, sig string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	if paymentID != "" {
		o.PaymentID = paymentID
		o.PaymentSignature = sig
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ListUnreconciled(ctx context.Context, olderThan time.Time, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Order
	for _, o := range m.orders {
		if o.Status == StatusCreated && o.CreatedAt.Before(olderThan) {
			cp := *o
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
