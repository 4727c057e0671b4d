// Package validation provides input validation for the creditrail API.
package validation

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// MaxAmount caps a single order at 10,000,000 minor units.
const MaxAmount = 10_000_000

var (
	// idRegex matches provider-style identifiers: an alphanumeric prefix,
	// an underscore, then the opaque id part.
	idRegex = regexp.MustCompile(`^[A-Za-z0-9]+_[A-Za-z0-9_-]{1,64}$`)
	// hexRegex validates hex strings (for signatures)
	hexRegex = regexp.MustCompile(`^[a-fA-F0-9]+$`)
)

var (
	ErrInvalidID     = errors.New("invalid identifier format")
	ErrInvalidAmount = errors.New("amount must be between 1 and 10000000")
)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// OrderID validates a provider-assigned order identifier.
func OrderID(id string) error {
	if !idRegex.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// PaymentID validates a provider-assigned payment identifier.
func PaymentID(id string) error {
	if !idRegex.MatchString(id) {
		return ErrInvalidID
	}
	return nil
}

// Amount validates a payment amount in minor currency units.
func Amount(amount int64) error {
	if amount <= 0 || amount > MaxAmount {
		return ErrInvalidAmount
	}
	return nil
}

// IsValidHex checks if a string is valid hex
func IsValidHex(s string) bool {
	return s != "" && hexRegex.MatchString(s)
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}
