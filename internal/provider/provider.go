// Package provider models inbound payment-provider webhook events.
//
// A shared provider account can serve several deployments, so every event
// carries a site tag in the payment notes. Events are classified into a
// closed set of kinds; anything the reconciler does not recognise falls into
// KindUnknown and is acknowledged without side effects.
package provider

import (
	"encoding/json"
	"errors"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the raw webhook body.
const SignatureHeader = "X-Provider-Signature"

var ErrMissingEventID = errors.New("provider: event has no id")

// Kind classifies a provider event for the reconciliation state machine.
type Kind int

const (
	// KindUnknown covers every event type the reconciler does not handle.
	// Unknown events are acknowledged and ignored.
	KindUnknown Kind = iota
	// KindCaptured means the payment succeeded and the order may be credited.
	KindCaptured
	// KindFailed means the payment failed and the order is terminal without credit.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindCaptured:
		return "captured"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PaymentEntity is the payment object embedded in a webhook payload.
type PaymentEntity struct {
	ID      string `json:"id"`
	Amount  int64  `json:"amount"` // minor currency units
	OrderID string `json:"order_id"`
	Notes   Notes  `json:"notes"`
}

// Notes holds provider-side metadata attached at checkout time.
type Notes struct {
	WebsiteID string `json:"website_id"`
}

// OrderEntity is the order object embedded in a webhook payload.
type OrderEntity struct {
	ID      string `json:"id"`
	Amount  int64  `json:"amount"`
	Receipt string `json:"receipt"`
}

// Event is one webhook delivery from the provider.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity OrderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// Parse decodes a raw webhook body. The raw bytes are verified by the
// signature layer before parsing; Parse only checks structural validity.
func Parse(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if ev.ID == "" {
		return nil, ErrMissingEventID
	}
	return &ev, nil
}

// Kind maps the provider's event type string onto the closed kind set.
func (e *Event) Kind() Kind {
	switch e.Type {
	case "payment.captured", "payment.authorized", "order.paid":
		return KindCaptured
	case "payment.failed":
		return KindFailed
	default:
		return KindUnknown
	}
}

// OrderID returns the local order reference, preferring the payment entity's
// order_id and falling back to the order entity for order.paid deliveries.
func (e *Event) OrderID() string {
	if id := e.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return e.Payload.Order.Entity.ID
}

// Amount returns the amount the provider reports for this event, in minor
// currency units.
func (e *Event) Amount() int64 {
	if e.Payload.Payment.Entity.Amount != 0 {
		return e.Payload.Payment.Entity.Amount
	}
	return e.Payload.Order.Entity.Amount
}

// PaymentID returns the provider-assigned payment identifier.
func (e *Event) PaymentID() string {
	return e.Payload.Payment.Entity.ID
}

// SiteID returns the deployment scope tag embedded in the payment notes.
func (e *Event) SiteID() string {
	return e.Payload.Payment.Entity.Notes.WebsiteID
}
