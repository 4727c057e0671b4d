package signature

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

func TestVerifyWebhook_ValidSignature(t *testing.T) {
	body := []byte(`{"id":"evt_1","event":"payment.captured"}`)
	sig := Sign(body, testSecret)

	assert.True(t, VerifyWebhook(body, sig, testSecret))
}

func TestVerifyWebhook_WrongSecret(t *testing.T) {
	body := []byte(`{"id":"evt_1"}`)
	sig := Sign(body, testSecret)

	assert.False(t, VerifyWebhook(body, sig, "other_secret"))
}

func TestVerifyWebhook_TamperedBody(t *testing.T) {
	body := []byte(`{"id":"evt_1","amount":2000}`)
	sig := Sign(body, testSecret)

	tampered := []byte(`{"id":"evt_1","amount":9000}`)
	assert.False(t, VerifyWebhook(tampered, sig, testSecret))
}

func TestVerifyWebhook_ExactBytesMatter(t *testing.T) {
	// Signing happens over raw wire bytes. A re-serialised JSON document is
	// semantically equal but byte-different and must fail verification.
	raw := []byte(`{"id": "evt_1", "event": "payment.captured"}`)
	sig := Sign(raw, testSecret)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(raw, &parsed))
	reserialised, err := json.Marshal(parsed)
	require.NoError(t, err)
	require.NotEqual(t, raw, reserialised)

	assert.True(t, VerifyWebhook(raw, sig, testSecret))
	assert.False(t, VerifyWebhook(reserialised, sig, testSecret))
}

func TestVerifyWebhook_EmptyInputs(t *testing.T) {
	body := []byte(`{}`)
	sig := Sign(body, testSecret)

	assert.False(t, VerifyWebhook(body, "", testSecret))
	assert.False(t, VerifyWebhook(body, sig, ""))
}

func TestVerifyCheckout_ValidSignature(t *testing.T) {
	sig := Sign([]byte("order_1|pay_1"), testSecret)

	assert.True(t, VerifyCheckout("order_1", "pay_1", sig, testSecret))
}

func TestVerifyCheckout_SwappedIDs(t *testing.T) {
	sig := Sign([]byte("order_1|pay_1"), testSecret)

	assert.False(t, VerifyCheckout("pay_1", "order_1", sig, testSecret))
}

func TestVerifyCheckout_MissingFields(t *testing.T) {
	sig := Sign([]byte("order_1|pay_1"), testSecret)

	assert.False(t, VerifyCheckout("", "pay_1", sig, testSecret))
	assert.False(t, VerifyCheckout("order_1", "", sig, testSecret))
	assert.False(t, VerifyCheckout("order_1", "pay_1", "", testSecret))
}
