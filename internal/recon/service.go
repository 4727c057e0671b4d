package recon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nkram/creditrail/internal/events"
	"github.com/nkram/creditrail/internal/logging"
	"github.com/nkram/creditrail/internal/metrics"
	"github.com/nkram/creditrail/internal/order"
	"github.com/nkram/creditrail/internal/provider"
	"github.com/nkram/creditrail/internal/signature"
	"github.com/nkram/creditrail/internal/traces"
)

// BalanceReader reads a user's current credit balance. Satisfied by the
// ledger store.
type BalanceReader interface {
	Balance(ctx context.Context, userID string) (int64, error)
}

// Notifier receives payment outcomes for realtime fan-out. Implementations
// must not block.
type Notifier interface {
	NotifyPayment(userID, orderID string, status order.Status, balance int64)
}

// Config carries the secrets and scope tag the orchestrator verifies
// against.
type Config struct {
	WebhookSecret  string
	CheckoutSecret string
	SiteID         string
}

// Service is the reconciliation orchestrator.
type Service struct {
	store    Store
	orders   order.Store
	balances BalanceReader
	cfg      Config
	notifier Notifier
}

// NewService creates a new reconciliation service. notifier may be nil.
func NewService(store Store, orders order.Store, balances BalanceReader, cfg Config, notifier Notifier) *Service {
	return &Service{
		store:    store,
		orders:   orders,
		balances: balances,
		cfg:      cfg,
		notifier: notifier,
	}
}

// ProcessWebhook handles one provider webhook delivery. rawBody must be
// the exact bytes read from the wire; the signature covers them, not any
// re-serialisation.
//
// The returned error is non-nil only for infrastructure failures worth a
// 5xx and a provider retry. Rejected signatures and malformed bodies are
// also errors (the caller maps them to 4xx). Every business outcome,
// including duplicates, returns a nil error.
func (s *Service) ProcessWebhook(ctx context.Context, rawBody []byte, sig string) (Outcome, error) {
	ctx, span := traces.StartSpan(ctx, "recon.process_webhook")
	defer span.End()

	if !signature.VerifyWebhook(rawBody, sig, s.cfg.WebhookSecret) {
		metrics.SignatureFailuresTotal.WithLabelValues("webhook").Inc()
		logging.L(ctx).Warn("webhook signature rejected")
		return "", ErrSignatureInvalid
	}

	ev, err := provider.Parse(rawBody)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	span.SetAttributes(traces.EventID(ev.ID), traces.PaymentID(ev.PaymentID()))

	var creditedUser string
	var balanceAfter int64

	status, err := s.store.Process(ctx, ev.ID, string(rawBody), func(tx Tx) (events.Status, error) {
		return s.reconcile(ctx, tx, ev, sig, &creditedUser, &balanceAfter)
	})
	if errors.Is(err, events.ErrDuplicateEvent) {
		metrics.DuplicateEventsTotal.Inc()
		metrics.WebhookEventsTotal.WithLabelValues(string(OutcomeDuplicate)).Inc()
		logging.L(ctx).Info("duplicate webhook delivery", "event_id", ev.ID)
		return OutcomeDuplicate, nil
	}
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(string(OutcomeError)).Inc()
		logging.L(ctx).Error("webhook processing failed", "event_id", ev.ID, "error", err)
		return OutcomeError, err
	}

	outcome := outcomeForStatus(status)
	span.SetAttributes(traces.Outcome(string(outcome)))
	metrics.WebhookEventsTotal.WithLabelValues(string(outcome)).Inc()
	logging.L(ctx).Info("webhook processed",
		"event_id", ev.ID,
		"type", ev.Type,
		"order_id", ev.OrderID(),
		"outcome", outcome,
	)

	if creditedUser != "" && s.notifier != nil {
		s.notifier.NotifyPayment(creditedUser, ev.OrderID(), order.StatusPaid, balanceAfter)
	}
	return outcome, nil
}

// reconcile is the per-event state machine, run inside the atomic unit.
func (s *Service) reconcile(ctx context.Context, tx Tx, ev *provider.Event, sig string, creditedUser *string, balanceAfter *int64) (events.Status, error) {
	if ev.Kind() == provider.KindUnknown {
		return events.StatusIgnored, nil
	}
	if s.cfg.SiteID != "" && ev.SiteID() != "" && ev.SiteID() != s.cfg.SiteID {
		// Tagged for a different deployment sharing the provider account.
		return events.StatusIgnored, nil
	}

	orderID := ev.OrderID()
	if orderID == "" {
		return events.StatusNoMatchingOrder, nil
	}
	o, err := tx.Order(ctx, orderID)
	if errors.Is(err, order.ErrOrderNotFound) {
		return events.StatusNoMatchingOrder, nil
	}
	if err != nil {
		return "", err
	}

	if ev.Kind() == provider.KindFailed {
		if o.Status == order.StatusCreated {
			if err := tx.SetOrderFailed(ctx, o.OrderID, ev.PaymentID(), sig); err != nil {
				return "", err
			}
		}
		return events.StatusProcessed, nil
	}

	// Captured. A wrong amount is flagged even for an already-paid order;
	// the mismatch check precedes the idempotency short-circuit.
	if ev.Amount() != o.Amount {
		logging.L(ctx).Warn("captured amount does not match order",
			"order_id", o.OrderID, "expected", o.Amount, "got", ev.Amount())
		return events.StatusAmountMismatch, nil
	}

	// The ledger key dedupes distinct events for one payment.
	key := "provider:" + ev.PaymentID()
	granted, err := tx.HasLedgerKey(ctx, key)
	if err != nil {
		return "", err
	}
	if granted || o.Status == order.StatusPaid {
		return events.StatusProcessed, nil
	}

	reason := fmt.Sprintf("order %s captured", o.OrderID)
	balance, err := tx.Credit(ctx, o.UserID, o.CreditsRequested, reason, key)
	if err != nil {
		return "", err
	}
	if err := tx.SetOrderPaid(ctx, o.OrderID, ev.PaymentID(), sig); err != nil {
		return "", err
	}

	*creditedUser = o.UserID
	*balanceAfter = balance
	return events.StatusProcessed, nil
}

// VerifyCheckout is the client-side return path after a checkout. It
// verifies the provider's client signature over "orderID|paymentID" and
// records the payment reference on the order. It never grants credits;
// only the webhook does. The response therefore reflects whatever state
// reconciliation has reached so far.
func (s *Service) VerifyCheckout(ctx context.Context, userID, orderID, paymentID, sig string) (*order.Order, int64, error) {
	ctx, span := traces.StartSpan(ctx, "recon.verify_checkout",
		traces.OrderID(orderID), traces.PaymentID(paymentID))
	defer span.End()

	if !signature.VerifyCheckout(orderID, paymentID, sig, s.cfg.CheckoutSecret) {
		metrics.SignatureFailuresTotal.WithLabelValues("checkout").Inc()
		return nil, 0, ErrSignatureInvalid
	}

	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, 0, err
	}
	if o.UserID != userID {
		// Do not leak other users' orders.
		return nil, 0, order.ErrOrderNotFound
	}

	if err := s.orders.AttachPayment(ctx, orderID, paymentID, sig); err != nil {
		return nil, 0, err
	}

	// Re-read: the webhook may have raced us and already paid the order.
	o, err = s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, 0, err
	}
	balance, err := s.balances.Balance(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	return o, balance, nil
}

// Unreconciled lists orders stuck awaiting a provider event.
func (s *Service) Unreconciled(ctx context.Context, olderThan time.Duration, limit int) ([]*order.Order, error) {
	return s.store.Unreconciled(ctx, time.Now().Add(-olderThan), limit)
}

// EventCounts returns webhook marker counts by status.
func (s *Service) EventCounts(ctx context.Context) (map[events.Status]int64, error) {
	return s.store.EventCounts(ctx)
}

func outcomeForStatus(status events.Status) Outcome {
	switch status {
	case events.StatusProcessed:
		return OutcomeProcessed
	case events.StatusIgnored:
		return OutcomeIgnored
	case events.StatusNoMatchingOrder:
		return OutcomeNoMatchingOrder
	case events.StatusAmountMismatch:
		return OutcomeAmountMismatch
	default:
		return OutcomeError
	}
}
