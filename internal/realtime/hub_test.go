package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/nkram/creditrail/internal/order"
)

func testHub() *Hub {
	return NewHub(slog.Default())
}

// ---------------------------------------------------------------------------
// shouldSend tests
// ---------------------------------------------------------------------------

func TestShouldSend_AllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventPayment, Timestamp: time.Now()}
	if !h.shouldSend(client, event) {
		t.Error("AllEvents client should receive all events")
	}
}

func TestShouldSend_EventTypeFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		EventTypes: []EventType{EventPayment},
	}}

	paymentEvent := &Event{Type: EventPayment}
	balanceEvent := &Event{Type: EventBalance}

	if !h.shouldSend(client, paymentEvent) {
		t.Error("Should receive payment events")
	}
	if h.shouldSend(client, balanceEvent) {
		t.Error("Should NOT receive balance events")
	}
}

func TestShouldSend_UserFilter(t *testing.T) {
	h := testHub()

	client := &Client{sub: Subscription{
		UserIDs: []string{"usr_1"},
	}}

	matching := &Event{
		Type: EventPayment,
		Data: map[string]interface{}{"userId": "usr_1", "orderId": "ord_1"},
	}
	notMatching := &Event{
		Type: EventPayment,
		Data: map[string]interface{}{"userId": "usr_2", "orderId": "ord_2"},
	}

	if !h.shouldSend(client, matching) {
		t.Error("Should match on userId")
	}
	if h.shouldSend(client, notMatching) {
		t.Error("Should NOT match other users")
	}
}

func TestShouldSend_EmptySubscription(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{}}

	event := &Event{Type: EventPayment}
	if !h.shouldSend(client, event) {
		t.Error("Empty subscription should receive everything")
	}
}

// ---------------------------------------------------------------------------
// broadcast tests
// ---------------------------------------------------------------------------

func TestNotifyPayment_EmitsPaymentAndBalance(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	h.NotifyPayment("usr_1", "ord_1", order.StatusPaid, 24)

	// Both events land on the broadcast channel (or have been consumed
	// by Run); either way two events were produced.
	deadline := time.After(time.Second)
	for h.totalEvents.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 events, saw %d", h.totalEvents.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSerialize(t *testing.T) {
	h := testHub()
	raw := h.serialize(&Event{
		Type:      EventBalance,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"userId": "usr_1", "credits": int64(24)},
	})

	var decoded struct {
		Type EventType `json:"type"`
		Data struct {
			UserID  string `json:"userId"`
			Credits int64  `json:"credits"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != EventBalance || decoded.Data.Credits != 24 {
		t.Fatalf("unexpected event: %+v", decoded)
	}
}

func TestBroadcast_FullChannelDoesNotBlock(t *testing.T) {
	h := testHub() // Run not started; channel fills up

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.NotifyUnreconciled(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on full channel")
	}
}

func TestRun_ShutdownClosesClients(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(ran)
	}()

	cancel()
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit on context cancel")
	}

	// Upgrades after shutdown are refused via the done channel.
	select {
	case <-h.done:
	default:
		t.Fatal("done channel should be closed after Run exits")
	}
}
