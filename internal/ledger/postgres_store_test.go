//go:build integration

package ledger

import (
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkram/creditrail/internal/testutil"
	"github.com/nkram/creditrail/internal/user"
)

func setupTestDB(t *testing.T) (*PostgresStore, *sql.DB, func()) {
	t.Helper()
	db, cleanup := testutil.PGTest(t)

	users := user.NewPostgresStore(db)
	require.NoError(t, users.Create(t.Context(), &user.User{
		ID:    "usr_1",
		Email: "alice@example.com",
		Name:  "Alice",
	}))
	return NewPostgresStore(db), db, cleanup
}

func seedBalance(t *testing.T, db *sql.DB, userID string, credits int64) {
	t.Helper()
	_, err := db.Exec(`UPDATE users SET credits = $2 WHERE id = $1`, userID, credits)
	require.NoError(t, err)
}

func TestPostgres_AppendAndBalance(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := t.Context()

	e := &Entry{
		UserID:         "usr_1",
		Delta:          4,
		Kind:           KindPurchase,
		Reason:         "order ord_1 captured",
		IdempotencyKey: "provider:pay_1",
	}
	require.NoError(t, store.Append(ctx, e))
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, int64(4), e.BalanceAfter)
	assert.False(t, e.CreatedAt.IsZero())

	balance, err := store.Balance(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)

	sum, err := store.SumForUser(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, balance, sum)
}

func TestPostgres_DuplicateKeyRollsBackBalance(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := t.Context()

	first := &Entry{UserID: "usr_1", Delta: 4, Kind: KindPurchase, IdempotencyKey: "provider:pay_1"}
	require.NoError(t, store.Append(ctx, first))

	second := &Entry{UserID: "usr_1", Delta: 4, Kind: KindPurchase, IdempotencyKey: "provider:pay_1"}
	assert.ErrorIs(t, store.Append(ctx, second), ErrDuplicateKey)

	// The balance update inside the failed tx must not survive.
	balance, err := store.Balance(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)
}

func TestPostgres_CheckConstraintBlocksOverdraft(t *testing.T) {
	store, db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := t.Context()
	seedBalance(t, db, "usr_1", 5)

	err := store.Append(ctx, &Entry{UserID: "usr_1", Delta: -10, Kind: KindDebit})
	assert.ErrorIs(t, err, user.ErrInsufficientCredits)

	balance, err := store.Balance(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestPostgres_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	store, db, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := t.Context()
	seedBalance(t, db, "usr_1", 10)

	const workers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Append(ctx, &Entry{UserID: "usr_1", Delta: -3, Kind: KindDebit})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	balance, err := store.Balance(ctx, "usr_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)
}

func TestPostgres_NullKeysDoNotCollide(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, &Entry{UserID: "usr_1", Delta: 1, Kind: KindAdminAdjustment}))
	require.NoError(t, store.Append(ctx, &Entry{UserID: "usr_1", Delta: 1, Kind: KindAdminAdjustment}))

	history, err := store.History(ctx, "usr_1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPostgres_HistoryPaging(t *testing.T) {
	store, _, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := t.Context()

	for _, key := range []string{"provider:p1", "provider:p2", "provider:p3"} {
		require.NoError(t, store.Append(ctx, &Entry{
			UserID: "usr_1", Delta: 1, Kind: KindPurchase, IdempotencyKey: key,
		}))
	}

	page, err := store.History(ctx, "usr_1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "provider:p3", page[0].IdempotencyKey)

	has, err := store.HasKey(ctx, "provider:p2")
	require.NoError(t, err)
	assert.True(t, has)
}
