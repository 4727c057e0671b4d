package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkram/creditrail/internal/metrics"
	"github.com/nkram/creditrail/internal/user"
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrMissingRequestID = errors.New("request id required")
)

// Service wraps the store with the credit/debit business operations.
type Service struct {
	store Store
}

// NewService creates a new ledger service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Credit grants credits to a user. When idemKey is set and was already
// used, Credit returns the previously recorded entry; the grant happened
// exactly once no matter how many times it is requested.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, reason, idemKey string) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.append(ctx, &Entry{
		UserID:         userID,
		Delta:          amount,
		Kind:           KindPurchase,
		Reason:         reason,
		IdempotencyKey: idemKey,
	})
}

// Debit deducts credits for service usage. requestID makes the debit
// idempotent: retries of the same request deduct once. Returns
// user.ErrInsufficientCredits when the balance cannot cover the amount.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, reason, requestID string) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var key string
	if requestID != "" {
		key = "debit:" + requestID
	}
	return s.append(ctx, &Entry{
		UserID:         userID,
		Delta:          -amount,
		Kind:           KindDebit,
		Reason:         reason,
		IdempotencyKey: key,
	})
}

// CompensateDebit refunds a previous debit after a failed service
// delivery. The refund gets its own idempotency key derived from the
// original request ID, so compensation is also exactly-once.
func (s *Service) CompensateDebit(ctx context.Context, userID string, amount int64, reason, requestID string) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if requestID == "" {
		return nil, ErrMissingRequestID
	}
	return s.append(ctx, &Entry{
		UserID:         userID,
		Delta:          amount,
		Kind:           KindRefund,
		Reason:         reason,
		IdempotencyKey: "refund:" + requestID,
	})
}

// AdminAdjust applies a manual correction. Delta may be negative but can
// never take the balance below zero.
func (s *Service) AdminAdjust(ctx context.Context, userID string, delta int64, reason string) (*Entry, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	return s.append(ctx, &Entry{
		UserID: userID,
		Delta:  delta,
		Kind:   KindAdminAdjustment,
		Reason: reason,
	})
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.store.Balance(ctx, userID)
}

// History returns the user's ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit, offset int) ([]*Entry, error) {
	return s.store.History(ctx, userID, limit, offset)
}

// Reconcile recomputes a user's balance from entries and compares it to
// the cached column. The two are updated atomically, so a discrepancy
// means a bug or manual DB surgery.
func (s *Service) Reconcile(ctx context.Context, userID string) (cached, computed int64, err error) {
	cached, err = s.store.Balance(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	computed, err = s.store.SumForUser(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return cached, computed, nil
}

func (s *Service) append(ctx context.Context, e *Entry) (*Entry, error) {
	err := s.store.Append(ctx, e)
	if errors.Is(err, ErrDuplicateKey) {
		existing, getErr := s.store.GetByKey(ctx, e.IdempotencyKey)
		if getErr != nil {
			return nil, fmt.Errorf("fetch entry for duplicate key %q: %w", e.IdempotencyKey, getErr)
		}
		return existing, nil
	}
	if err != nil {
		if errors.Is(err, user.ErrInsufficientCredits) {
			metrics.InsufficientCreditsTotal.Inc()
		}
		return nil, err
	}
	metrics.LedgerEntriesTotal.WithLabelValues(string(e.Kind)).Inc()
	return e, nil
}
