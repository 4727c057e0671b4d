package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit_FirstDeliveryWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	require.NoError(t, store.Admit(ctx, "evt_1", `{"id":"evt_1"}`))
	assert.ErrorIs(t, store.Admit(ctx, "evt_1", `{"id":"evt_1"}`), ErrDuplicateEvent)

	marker, err := store.Get(ctx, "evt_1")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, marker.Status)
	assert.Nil(t, marker.ProcessedAt)
}

func TestAdmit_ConcurrentDeliveries(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Admit(ctx, "evt_race", "{}"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}

func TestAdmit_ReclaimsErroredMarker(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	require.NoError(t, store.Admit(ctx, "evt_2", "{}"))
	require.NoError(t, store.SetStatus(ctx, "evt_2", StatusError))

	// A provider retry must get a second chance after a transient failure.
	require.NoError(t, store.Admit(ctx, "evt_2", "{}"))

	marker, err := store.Get(ctx, "evt_2")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, marker.Status)
	assert.Nil(t, marker.ProcessedAt)
}

func TestAdmit_TerminalStatusStaysClaimed(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	for _, status := range []Status{StatusProcessed, StatusIgnored, StatusNoMatchingOrder, StatusAmountMismatch} {
		eventID := "evt_" + string(status)
		require.NoError(t, store.Admit(ctx, eventID, "{}"))
		require.NoError(t, store.SetStatus(ctx, eventID, status))
		assert.ErrorIs(t, store.Admit(ctx, eventID, "{}"), ErrDuplicateEvent,
			"status %s must not be reclaimable", status)
	}
}

func TestSetStatus_UnknownEvent(t *testing.T) {
	store := NewMemoryStore()
	assert.ErrorIs(t, store.SetStatus(t.Context(), "evt_missing", StatusProcessed), ErrEventNotFound)
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusProcessed.Terminal())
	assert.True(t, StatusIgnored.Terminal())
	assert.True(t, StatusNoMatchingOrder.Terminal())
	assert.True(t, StatusAmountMismatch.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusError.Terminal())
}

func TestCountByStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	require.NoError(t, store.Admit(ctx, "evt_a", "{}"))
	require.NoError(t, store.Admit(ctx, "evt_b", "{}"))
	require.NoError(t, store.SetStatus(ctx, "evt_b", StatusProcessed))

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[StatusProcessing])
	assert.Equal(t, int64(1), counts[StatusProcessed])
}
