package order

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// PostgresStore implements Store with PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed order store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, o *Order) error {
	status := o.Status
	if status == "" {
		status = StatusCreated
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO orders (order_id, user_id, amount, credits_requested, status, receipt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING status, created_at, updated_at
	`, o.OrderID, o.UserID, o.Amount, o.CreditsRequested, status, o.Receipt).
		Scan(&o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrOrderExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	return scanOrder(p.db.QueryRowContext(ctx, `
		SELECT order_id, user_id, amount, credits_requested, status,
		       payment_id, payment_signature, receipt, created_at, updated_at
		FROM orders WHERE order_id = $1
	`, orderID))
}

func (p *PostgresStore) AttachPayment(ctx context.Context, orderID, paymentID, sig string) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE orders SET
			payment_id        = $2,
			payment_signature = $3,
			updated_at        = NOW()
		WHERE order_id = $1 AND payment_id IS NULL
	`, orderID, paymentID, sig)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Either the order does not exist or a payment is already attached.
		// The latter is fine; distinguish only the former.
		var exists bool
		if err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrOrderNotFound
		}
	}
	return nil
}

func (p *PostgresStore) ListUnreconciled(ctx context.Context, olderThan time.Time, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT order_id, user_id, amount, credits_requested, status,
		       payment_id, payment_signature, receipt, created_at, updated_at
		FROM orders
		WHERE status = 'created' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Order, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT order_id, user_id, amount, credits_requested, status,
		       payment_id, payment_signature, receipt, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// SetStatusTx updates an order inside a caller-owned transaction. The
// reconciliation store uses this so the status change commits atomically with
// the ledger append and the event marker.
func SetStatusTx(ctx context.Context, tx *sql.Tx, orderID string, status Status, paymentID, sig string) error {
	var result sql.Result
	var err error
	if paymentID != "" {
		result, err = tx.ExecContext(ctx, `
			UPDATE orders SET
				status            = $2,
				payment_id        = $3,
				payment_signature = $4,
				updated_at        = NOW()
			WHERE order_id = $1
		`, orderID, status, paymentID, sig)
	} else {
		result, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW()
			WHERE order_id = $1
		`, orderID, status)
	}
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetTx reads an order inside a caller-owned transaction, taking a row
// lock. Two events for the same order therefore reconcile one after the
// other, and the second sees the first's ledger key.
func GetTx(ctx context.Context, tx *sql.Tx, orderID string) (*Order, error) {
	return scanOrder(tx.QueryRowContext(ctx, `
		SELECT order_id, user_id, amount, credits_requested, status,
		       payment_id, payment_signature, receipt, created_at, updated_at
		FROM orders WHERE order_id = $1
		FOR UPDATE
	`, orderID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	o := &Order{}
	var paymentID, paymentSig, receipt sql.NullString
	err := row.Scan(&o.OrderID, &o.UserID, &o.Amount, &o.CreditsRequested, &o.Status,
		&paymentID, &paymentSig, &receipt, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.PaymentID = paymentID.String
	o.PaymentSignature = paymentSig.String
	o.Receipt = receipt.String
	return o, nil
}

func collectOrders(rows *sql.Rows) ([]*Order, error) {
	defer rows.Close()
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
