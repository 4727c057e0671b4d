// Package ledger is the append-only record of credit movements and the
// single writer of user balances.
//
// Every balance change is an Entry. The users.credits column is a cached
// projection of the sum of a user's entry deltas, and both are updated in
// the same atomic unit, so the two can never drift apart. Entries carry
// an optional idempotency key; appending a second entry with the same key
// fails, which is what makes crediting a payment safe to retry.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateKey means an entry with this idempotency key already
	// exists. The operation already happened; callers treat it as done.
	ErrDuplicateKey = errors.New("idempotency key already used")

	ErrEntryNotFound = errors.New("ledger entry not found")
)

// Kind classifies a ledger entry.
type Kind string

const (
	// KindPurchase is a credit granted for a captured payment.
	KindPurchase Kind = "purchase"
	// KindDebit is a deduction for service usage.
	KindDebit Kind = "debit"
	// KindRefund is a compensating credit for a failed service delivery.
	KindRefund Kind = "refund"
	// KindAdminAdjustment is a manual correction.
	KindAdminAdjustment Kind = "admin_adjustment"
)

// Entry is one immutable credit movement. Delta is positive for credits
// and negative for debits.
type Entry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Delta          int64     `json:"delta"`
	Kind           Kind      `json:"kind"`
	Reason         string    `json:"reason,omitempty"`
	IdempotencyKey string    `json:"-"`
	BalanceAfter   int64     `json:"balanceAfter"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists ledger entries and keeps users.credits in step.
//
// Append is the only mutation. Within one atomic unit it checks the
// idempotency key, inserts the entry, and applies the delta to the
// user's balance. It returns ErrDuplicateKey when the key was already
// used, user.ErrInsufficientCredits when a negative delta would take
// the balance below zero, and fills in Entry.ID, BalanceAfter and
// CreatedAt on success.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	Balance(ctx context.Context, userID string) (int64, error)
	History(ctx context.Context, userID string, limit, offset int) ([]*Entry, error)
	GetByKey(ctx context.Context, key string) (*Entry, error)
	HasKey(ctx context.Context, key string) (bool, error)
	// SumForUser recomputes the balance from entries, bypassing the
	// cached column. Used by the admin reconcile check.
	SumForUser(ctx context.Context, userID string) (int64, error)
}
