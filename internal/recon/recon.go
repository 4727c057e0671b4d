// Package recon reconciles provider payment events against local orders
// and grants credits exactly once per captured payment.
//
// One webhook delivery is processed as one atomic unit: the event marker
// admission, the order transition, the ledger append, and the terminal
// marker status all commit together or not at all. Two layers of
// idempotency protect the grant: the event marker dedupes redeliveries
// of the same event, and the ledger key "provider:<paymentID>" dedupes
// distinct events for the same payment.
package recon

import (
	"context"
	"errors"
	"time"

	"github.com/nkram/creditrail/internal/events"
	"github.com/nkram/creditrail/internal/order"
)

var (
	// ErrSignatureInvalid means the payload failed HMAC verification.
	// The body is untrusted and nothing is recorded.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrMalformed means the body passed verification but could not be
	// parsed into an event with an ID.
	ErrMalformed = errors.New("malformed webhook payload")
)

// Outcome is the result of processing one webhook delivery, reported to
// the caller and to metrics.
type Outcome string

const (
	OutcomeProcessed       Outcome = "processed"
	OutcomeDuplicate       Outcome = "duplicate"
	OutcomeIgnored         Outcome = "ignored"
	OutcomeNoMatchingOrder Outcome = "no_matching_order"
	OutcomeAmountMismatch  Outcome = "amount_mismatch"
	OutcomeError           Outcome = "error"
)

// Tx is the atomic unit a single webhook event is processed in. All
// operations see and produce a consistent snapshot; if the processing
// function returns an error, none of the mutations survive.
type Tx interface {
	// Order reads an order for update.
	Order(ctx context.Context, orderID string) (*order.Order, error)
	// HasLedgerKey reports whether a credit with this idempotency key
	// was already granted.
	HasLedgerKey(ctx context.Context, key string) (bool, error)
	// Credit appends a purchase entry and updates the user's balance,
	// returning the balance after the grant.
	Credit(ctx context.Context, userID string, amount int64, reason, key string) (int64, error)
	// SetOrderPaid transitions the order to paid and records the
	// provider payment id and signature.
	SetOrderPaid(ctx context.Context, orderID, paymentID, sig string) error
	// SetOrderFailed transitions the order to failed.
	SetOrderFailed(ctx context.Context, orderID, paymentID, sig string) error
}

// Store runs webhook processing in atomic units and exposes the
// reconciliation read views.
type Store interface {
	// Process admits eventID and runs fn inside one atomic unit. The
	// status fn returns is recorded on the event marker before commit.
	// It returns events.ErrDuplicateEvent without running fn when the
	// event was already admitted. When fn or the commit fails, every
	// mutation is rolled back and the marker is re-recorded with
	// status error so a provider retry can claim it again.
	Process(ctx context.Context, eventID, payload string, fn func(tx Tx) (events.Status, error)) (events.Status, error)

	// Unreconciled lists orders still awaiting a provider event.
	Unreconciled(ctx context.Context, olderThan time.Time, limit int) ([]*order.Order, error)

	// EventCounts returns marker counts by status, for the admin view.
	EventCounts(ctx context.Context) (map[events.Status]int64, error)
}
