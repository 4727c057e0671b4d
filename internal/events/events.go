// Package events tracks provider webhook deliveries for deduplication.
//
// Each delivery is admitted exactly once: admitting an event inserts a
// marker row keyed by the provider's event ID, and a second delivery of
// the same event fails with ErrDuplicateEvent. The marker doubles as an
// audit record, carrying the raw payload and the terminal outcome of
// processing.
package events

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateEvent means this event ID was already admitted and is
	// either in flight or finished. Safe to acknowledge to the provider.
	ErrDuplicateEvent = errors.New("event already processed")

	ErrEventNotFound = errors.New("event not found")
)

// Status is the processing outcome recorded on an event marker.
type Status string

const (
	// StatusProcessing is the initial status set at admission.
	StatusProcessing Status = "processing"

	// StatusProcessed means credits were granted and the order marked paid.
	StatusProcessed Status = "processed"

	// StatusIgnored means the event kind is not one we act on.
	StatusIgnored Status = "ignored"

	// StatusNoMatchingOrder means the event referenced an order we have
	// no record of, or one belonging to a different site.
	StatusNoMatchingOrder Status = "no_matching_order"

	// StatusAmountMismatch means the captured amount differed from the
	// order's expected amount. Credits are withheld for manual review.
	StatusAmountMismatch Status = "amount_mismatch"

	// StatusError means processing failed transiently. Markers in this
	// status are re-claimable by a redelivery of the same event.
	StatusError Status = "error"
)

// Terminal reports whether the status is a final outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusProcessed, StatusIgnored, StatusNoMatchingOrder, StatusAmountMismatch:
		return true
	}
	return false
}

// Marker records one admitted webhook delivery.
type Marker struct {
	EventID     string     `json:"eventId"`
	Status      Status     `json:"status"`
	Payload     string     `json:"-"`
	ReceivedAt  time.Time  `json:"receivedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// Store persists event markers.
//
// Admit claims an event ID for processing. It returns ErrDuplicateEvent
// when the ID is already claimed, unless the existing marker's status is
// StatusError, in which case the marker is reclaimed so the provider's
// retry can run processing again.
type Store interface {
	Admit(ctx context.Context, eventID, payload string) error
	SetStatus(ctx context.Context, eventID string, status Status) error
	Get(ctx context.Context, eventID string) (*Marker, error)
	CountByStatus(ctx context.Context) (map[Status]int64, error)
}
