package recon

import (
	"context"
	"database/sql"
	"time"

	"github.com/nkram/creditrail/internal/events"
	"github.com/nkram/creditrail/internal/ledger"
	"github.com/nkram/creditrail/internal/logging"
	"github.com/nkram/creditrail/internal/order"
)

// PostgresStore runs webhook processing in a single database transaction.
// The unique constraint on payment_events.event_id is the admission gate:
// concurrent deliveries of one event race on the marker insert, exactly
// one transaction wins, and the losers see ErrDuplicateEvent.
type PostgresStore struct {
	db     *sql.DB
	orders *order.PostgresStore
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		orders: order.NewPostgresStore(db),
	}
}

func (p *PostgresStore) Process(ctx context.Context, eventID, payload string, fn func(tx Tx) (events.Status, error)) (events.Status, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if err := events.AdmitTx(ctx, tx, eventID, payload); err != nil {
		return "", err
	}

	status, err := fn(&pgTx{tx: tx})
	if err != nil {
		tx.Rollback()
		p.markError(ctx, eventID, payload)
		return events.StatusError, err
	}
	if err := events.SetStatusTx(ctx, tx, eventID, status); err != nil {
		tx.Rollback()
		p.markError(ctx, eventID, payload)
		return events.StatusError, err
	}
	if err := tx.Commit(); err != nil {
		p.markError(ctx, eventID, payload)
		return events.StatusError, err
	}
	return status, nil
}

// markError records a marker with status error outside the (rolled back)
// transaction, so the provider's retry finds a re-claimable marker. The
// guard on status protects a concurrent delivery that admitted the event
// in the meantime.
func (p *PostgresStore) markError(ctx context.Context, eventID, payload string) {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payment_events (event_id, status, payload, received_at, processed_at)
		VALUES ($1, 'error', $2, NOW(), NOW())
		ON CONFLICT (event_id) DO UPDATE SET
			status       = 'error',
			processed_at = NOW()
		WHERE payment_events.status = 'processing'
	`, eventID, payload)
	if err != nil {
		logging.L(ctx).Error("failed to mark event as error", "event_id", eventID, "error", err)
	}
}

func (p *PostgresStore) Unreconciled(ctx context.Context, olderThan time.Time, limit int) ([]*order.Order, error) {
	return p.orders.ListUnreconciled(ctx, olderThan, limit)
}

func (p *PostgresStore) EventCounts(ctx context.Context) (map[events.Status]int64, error) {
	return events.NewPostgresStore(p.db).CountByStatus(ctx)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Order(ctx context.Context, orderID string) (*order.Order, error) {
	return order.GetTx(ctx, t.tx, orderID)
}

func (t *pgTx) HasLedgerKey(ctx context.Context, key string) (bool, error) {
	return ledger.HasKeyTx(ctx, t.tx, key)
}

func (t *pgTx) Credit(ctx context.Context, userID string, amount int64, reason, key string) (int64, error) {
	e := &ledger.Entry{
		UserID:         userID,
		Delta:          amount,
		Kind:           ledger.KindPurchase,
		Reason:         reason,
		IdempotencyKey: key,
	}
	if err := ledger.AppendTx(ctx, t.tx, e); err != nil {
		return 0, err
	}
	return e.BalanceAfter, nil
}

func (t *pgTx) SetOrderPaid(ctx context.Context, orderID, paymentID, sig string) error {
	return order.SetStatusTx(ctx, t.tx, orderID, order.StatusPaid, paymentID, sig)
}

func (t *pgTx) SetOrderFailed(ctx context.Context, orderID, paymentID, sig string) error {
	return order.SetStatusTx(ctx, t.tx, orderID, order.StatusFailed, paymentID, sig)
}
