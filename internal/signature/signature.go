// Package signature verifies that payment-provider notifications are genuine.
//
// Two variants exist:
//   - webhook deliveries sign the exact raw request body
//   - client checkout confirmations sign the canonical "orderID|paymentID" string
//
// Both use hex-encoded HMAC-SHA256 with a shared secret. Verification never
// panics; any mismatch, empty secret, or malformed input yields false and the
// caller rejects the request.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyWebhook checks the provider signature over the raw webhook body.
//
// The body must be the exact bytes received on the wire. Re-serialising
// parsed JSON produces different bytes and invalidates the signature, so
// callers capture the buffer before any binding or transformation.
func VerifyWebhook(rawBody []byte, sig, secret string) bool {
	if secret == "" || sig == "" {
		return false
	}
	return hmac.Equal([]byte(compute(rawBody, secret)), []byte(sig))
}

// VerifyCheckout checks a client-submitted payment confirmation, signed over
// the canonical "orderID|paymentID" string rather than a request body.
func VerifyCheckout(orderID, paymentID, sig, secret string) bool {
	if secret == "" || sig == "" || orderID == "" || paymentID == "" {
		return false
	}
	payload := orderID + "|" + paymentID
	return hmac.Equal([]byte(compute([]byte(payload), secret)), []byte(sig))
}

// Sign produces the hex HMAC-SHA256 of payload. Exported for tests and for
// outbound event signing.
func Sign(payload []byte, secret string) string {
	return compute(payload, secret)
}

func compute(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
