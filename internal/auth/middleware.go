package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyAPIKey is the gin context key for the validated API key.
	ContextKeyAPIKey = "apiKey"
	// ContextKeyUserID is the gin context key for the authenticated user id.
	ContextKeyUserID = "authUserID"
)

// Middleware extracts and validates the API key from the request and, when
// valid, sets the key and user id in the gin context. It never rejects on its
// own; pair with RequireAuth on protected groups.
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}

		if apiKey != "" {
			key, err := m.ValidateKey(c.Request.Context(), apiKey)
			if err == nil {
				c.Set(ContextKeyAPIKey, key)
				c.Set(ContextKeyUserID, key.UserID)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a valid API key.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyAPIKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer sk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects requests whose X-Admin-Secret header does not match
// the configured secret. An empty configured secret disables admin routes.
func RequireAdmin(adminSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		supplied := c.GetHeader("X-Admin-Secret")
		if adminSecret == "" ||
			subtle.ConstantTimeCompare([]byte(supplied), []byte(adminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "forbidden",
				"message": "Admin access required",
			})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user id from the gin context, or "".
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
