//go:build integration

package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkram/creditrail/internal/testutil"
)

func TestPostgres_AdmitFirstDeliveryWins(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := t.Context()

	require.NoError(t, store.Admit(ctx, "evt_1", `{"id":"evt_1"}`))
	assert.ErrorIs(t, store.Admit(ctx, "evt_1", `{"id":"evt_1"}`), ErrDuplicateEvent)

	marker, err := store.Get(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, marker.Status)
	assert.Nil(t, marker.ProcessedAt)
}

func TestPostgres_ConcurrentAdmit(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := t.Context()

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Admit(ctx, "evt_1", "{}"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}

func TestPostgres_ErrorMarkerReclaim(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := t.Context()

	require.NoError(t, store.Admit(ctx, "evt_1", "{}"))
	require.NoError(t, store.SetStatus(ctx, "evt_1", StatusError))

	// A retry after a failed attempt re-claims the marker.
	require.NoError(t, store.Admit(ctx, "evt_1", "{}"))
	marker, err := store.Get(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, marker.Status)

	// A terminal marker stays claimed.
	require.NoError(t, store.SetStatus(ctx, "evt_1", StatusProcessed))
	assert.ErrorIs(t, store.Admit(ctx, "evt_1", "{}"), ErrDuplicateEvent)
}

func TestPostgres_SetStatusUnknownEvent(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)

	assert.ErrorIs(t, store.SetStatus(t.Context(), "evt_missing", StatusProcessed), ErrEventNotFound)
}

func TestPostgres_CountByStatus(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	store := NewPostgresStore(db)
	ctx := t.Context()

	require.NoError(t, store.Admit(ctx, "evt_1", "{}"))
	require.NoError(t, store.SetStatus(ctx, "evt_1", StatusProcessed))
	require.NoError(t, store.Admit(ctx, "evt_2", "{}"))
	require.NoError(t, store.SetStatus(ctx, "evt_2", StatusIgnored))
	require.NoError(t, store.Admit(ctx, "evt_3", "{}"))

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[StatusProcessed])
	assert.Equal(t, int64(1), counts[StatusIgnored])
	assert.Equal(t, int64(1), counts[StatusProcessing])
}
