package recon

import (
	"context"
	"log/slog"
	"time"

	"github.com/nkram/creditrail/internal/metrics"
)

// Timer periodically sweeps for orders that never received a provider
// event. It makes the gap observable: it logs, counts, and feeds the
// unreconciled_orders gauge. It never grants credits; the webhook is the
// only crediting source, and a missing webhook is something an operator
// has to chase with the provider.
type Timer struct {
	service  *Service
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

// NewTimer creates a reconciliation sweep timer. maxAge is how long an
// order may sit in created state before it counts as unreconciled.
func NewTimer(service *Service, interval, maxAge time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Start runs the sweep loop. Call in a goroutine; exits when ctx is done.
func (t *Timer) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("reconciliation sweep started",
		"interval", t.interval, "max_age", t.maxAge)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sweep(ctx)
		}
	}
}

func (t *Timer) sweep(ctx context.Context) {
	orders, err := t.service.Unreconciled(ctx, t.maxAge, 500)
	if err != nil {
		t.logger.Error("reconciliation sweep failed", "error", err)
		return
	}

	metrics.UnreconciledOrders.Set(float64(len(orders)))
	if len(orders) == 0 {
		return
	}

	t.logger.Warn("orders awaiting provider events", "count", len(orders))
	for _, o := range orders {
		t.logger.Warn("unreconciled order",
			"order_id", o.OrderID,
			"user_id", o.UserID,
			"amount", o.Amount,
			"age", time.Since(o.CreatedAt).Round(time.Second),
		)
	}
}
