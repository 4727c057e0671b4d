package recon

import (
	"context"
	"sync"
	"time"

	"github.com/nkram/creditrail/internal/events"
	"github.com/nkram/creditrail/internal/ledger"
	"github.com/nkram/creditrail/internal/order"
)

// MemoryStore composes the in-memory stores into a processing unit for
// demo/development mode. A single mutex serialises webhook processing,
// which gives the same effective isolation as the Postgres transaction.
// Unlike Postgres it cannot roll back partial work; the state machine
// orders its mutations so the ledger append, the idempotent step, comes
// before the order transition.
type MemoryStore struct {
	mu      sync.Mutex
	markers *events.MemoryStore
	orders  *order.MemoryStore
	entries *ledger.MemoryStore
}

func NewMemoryStore(markers *events.MemoryStore, orders *order.MemoryStore, entries *ledger.MemoryStore) *MemoryStore {
	return &MemoryStore{
		markers: markers,
		orders:  orders,
		entries: entries,
	}
}

func (m *MemoryStore) Process(ctx context.Context, eventID, payload string, fn func(tx Tx) (events.Status, error)) (events.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.markers.Admit(ctx, eventID, payload); err != nil {
		return "", err
	}

	status, err := fn(&memTx{store: m})
	if err != nil {
		if markErr := m.markers.SetStatus(ctx, eventID, events.StatusError); markErr != nil {
			return events.StatusError, markErr
		}
		return events.StatusError, err
	}
	if err := m.markers.SetStatus(ctx, eventID, status); err != nil {
		return events.StatusError, err
	}
	return status, nil
}

func (m *MemoryStore) Unreconciled(ctx context.Context, olderThan time.Time, limit int) ([]*order.Order, error) {
	return m.orders.ListUnreconciled(ctx, olderThan, limit)
}

func (m *MemoryStore) EventCounts(ctx context.Context) (map[events.Status]int64, error) {
	return m.markers.CountByStatus(ctx)
}

type memTx struct {
	store *MemoryStore
}

func (t *memTx) Order(ctx context.Context, orderID string) (*order.Order, error) {
	return t.store.orders.GetByOrderID(ctx, orderID)
}

func (t *memTx) HasLedgerKey(ctx context.Context, key string) (bool, error) {
	return t.store.entries.HasKey(ctx, key)
}

func (t *memTx) Credit(ctx context.Context, userID string, amount int64, reason, key string) (int64, error) {
	e := &ledger.Entry{
		UserID:         userID,
		Delta:          amount,
		Kind:           ledger.KindPurchase,
		Reason:         reason,
		IdempotencyKey: key,
	}
	if err := t.store.entries.Append(ctx, e); err != nil {
		return 0, err
	}
	return e.BalanceAfter, nil
}

func (t *memTx) SetOrderPaid(ctx context.Context, orderID, paymentID, sig string) error {
	return t.store.orders.SetStatus(ctx, orderID, order.StatusPaid, paymentID, sig)
}

func (t *memTx) SetOrderFailed(ctx context.Context, orderID, paymentID, sig string) error {
	return t.store.orders.SetStatus(ctx, orderID, order.StatusFailed, paymentID, sig)
}
