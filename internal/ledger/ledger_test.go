package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkram/creditrail/internal/user"
)

func newTestService(t *testing.T, startingCredits int64) (*Service, *user.MemoryStore) {
	t.Helper()
	users := user.NewMemoryStore()
	require.NoError(t, users.Create(t.Context(), &user.User{
		ID:      "usr_1",
		Email:   "alice@example.com",
		Name:    "Alice",
		Credits: startingCredits,
	}))
	return NewService(NewMemoryStore(users)), users
}

func TestCredit_UpdatesBalanceAndHistory(t *testing.T) {
	svc, users := newTestService(t, 0)
	ctx := t.Context()

	entry, err := svc.Credit(ctx, "usr_1", 4, "order ord_1 captured", "provider:pay_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), entry.Delta)
	assert.Equal(t, KindPurchase, entry.Kind)
	assert.Equal(t, int64(4), entry.BalanceAfter)
	assert.NotEmpty(t, entry.ID)

	credits, err := users.Credits(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), credits)

	history, err := svc.History(ctx, "usr_1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
}

func TestCredit_IdempotencyKeyAppliesOnce(t *testing.T) {
	svc, users := newTestService(t, 20)
	ctx := t.Context()

	first, err := svc.Credit(ctx, "usr_1", 4, "payment captured", "provider:pay_1")
	require.NoError(t, err)

	// Same key again: no new entry, balance unchanged, same entry back.
	second, err := svc.Credit(ctx, "usr_1", 4, "payment captured", "provider:pay_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	credits, err := users.Credits(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(24), credits)

	history, err := svc.History(ctx, "usr_1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCredit_RejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newTestService(t, 0)
	_, err := svc.Credit(t.Context(), "usr_1", 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = svc.Credit(t.Context(), "usr_1", -5, "", "")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDebit_InsufficientCreditsLeavesNoTrace(t *testing.T) {
	svc, users := newTestService(t, 5)
	ctx := t.Context()

	_, err := svc.Debit(ctx, "usr_1", 10, "ocr job", "req_1")
	assert.ErrorIs(t, err, user.ErrInsufficientCredits)

	credits, err := users.Credits(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), credits)

	history, err := svc.History(ctx, "usr_1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDebit_IdempotentByRequestID(t *testing.T) {
	svc, users := newTestService(t, 10)
	ctx := t.Context()

	first, err := svc.Debit(ctx, "usr_1", 3, "ocr job", "req_1")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), first.Delta)
	assert.Equal(t, "debit:req_1", first.IdempotencyKey)

	second, err := svc.Debit(ctx, "usr_1", 3, "ocr job", "req_1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	credits, err := users.Credits(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), credits)
}

func TestConcurrentDebits_NeverOverdraw(t *testing.T) {
	svc, users := newTestService(t, 10)
	ctx := t.Context()

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Debit(ctx, "usr_1", 3, "job", "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if err != user.ErrInsufficientCredits {
				t.Errorf("unexpected debit error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	// Balance 10, debits of 3: exactly 3 can win.
	assert.Equal(t, 3, succeeded)
	credits, err := users.Credits(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), credits)
}

func TestCompensateDebit(t *testing.T) {
	svc, users := newTestService(t, 10)
	ctx := t.Context()

	_, err := svc.Debit(ctx, "usr_1", 4, "ocr job", "req_9")
	require.NoError(t, err)

	refund, err := svc.CompensateDebit(ctx, "usr_1", 4, "ocr job failed", "req_9")
	require.NoError(t, err)
	assert.Equal(t, KindRefund, refund.Kind)
	assert.Equal(t, "refund:req_9", refund.IdempotencyKey)

	// Retrying the compensation does not double-refund.
	again, err := svc.CompensateDebit(ctx, "usr_1", 4, "ocr job failed", "req_9")
	require.NoError(t, err)
	assert.Equal(t, refund.ID, again.ID)

	credits, err := users.Credits(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), credits)
}

func TestCompensateDebit_RequiresRequestID(t *testing.T) {
	svc, _ := newTestService(t, 10)
	_, err := svc.CompensateDebit(t.Context(), "usr_1", 4, "", "")
	assert.ErrorIs(t, err, ErrMissingRequestID)
}

func TestAdminAdjust_NegativeBoundedAtZero(t *testing.T) {
	svc, _ := newTestService(t, 3)
	ctx := t.Context()

	_, err := svc.AdminAdjust(ctx, "usr_1", -5, "correction")
	assert.ErrorIs(t, err, user.ErrInsufficientCredits)

	entry, err := svc.AdminAdjust(ctx, "usr_1", -3, "correction")
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.BalanceAfter)
}

func TestReconcile_CachedMatchesComputed(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := t.Context()

	_, err := svc.Credit(ctx, "usr_1", 10, "seed", "provider:pay_a")
	require.NoError(t, err)
	_, err = svc.Debit(ctx, "usr_1", 4, "job", "req_1")
	require.NoError(t, err)

	cached, computed, err := svc.Reconcile(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), cached)
	assert.Equal(t, cached, computed)
}

func TestHistory_NewestFirstWithPaging(t *testing.T) {
	svc, _ := newTestService(t, 0)
	ctx := t.Context()

	for _, key := range []string{"provider:p1", "provider:p2", "provider:p3"} {
		_, err := svc.Credit(ctx, "usr_1", 1, "", key)
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, "usr_1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "provider:p3", page[0].IdempotencyKey)

	rest, err := svc.History(ctx, "usr_1", 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "provider:p1", rest[0].IdempotencyKey)
}
