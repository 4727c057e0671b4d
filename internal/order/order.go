// Package order tracks purchase orders for credit packs.
//
// An order is created locally when a user starts a checkout; the provider
// assigns its identifier. Status only ever moves forward:
//
//	created -> paid    (webhook reconciled, credits granted)
//	created -> failed  (provider reported payment failure)
//	paid    -> refunded (administrative path)
//
// Orders are never deleted; they are the audit trail for every credit grant.
package order

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
)

// Status is an order's position in its lifecycle.
type Status string

const (
	StatusCreated  Status = "created"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Order represents one purchase attempt. Amount and CreditsRequested are
// immutable after creation; only the reconciler mutates status and the
// provider payment fields.
type Order struct {
	OrderID          string    `json:"orderId"` // provider-assigned, unique
	UserID           string    `json:"userId"`
	Amount           int64     `json:"amount"` // minor currency units
	CreditsRequested int64     `json:"creditsRequested"`
	Status           Status    `json:"status"`
	PaymentID        string    `json:"paymentId,omitempty"`
	PaymentSignature string    `json:"-"`
	Receipt          string    `json:"receipt,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o *Order) error
	GetByOrderID(ctx context.Context, orderID string) (*Order, error)
	// AttachPayment records the provider payment id and signature on an order
	// if none are present yet. It never changes status; the webhook path is
	// the only writer of status transitions.
	AttachPayment(ctx context.Context, orderID, paymentID, sig string) error
	// ListUnreconciled returns orders still in created state older than the
	// cutoff, for the reconciliation sweep.
	ListUnreconciled(ctx context.Context, olderThan time.Time, limit int) ([]*Order, error)
	// ListByUser returns a user's orders, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*Order, error)
}
