package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(m *Manager, adminSecret string) *gin.Engine {
	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c)})
	})
	protected := r.Group("", RequireAuth())
	protected.GET("/protected", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c)})
	})
	admin := r.Group("", RequireAdmin(adminSecret))
	admin.GET("/admin", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireAuth_RejectsMissingKey(t *testing.T) {
	r := setupRouter(NewManager(NewMemoryStore()), "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/protected", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_AcceptsValidKey(t *testing.T) {
	m := NewManager(NewMemoryStore())
	rawKey, _, err := m.GenerateKey(t.Context(), "usr_1", "test")
	require.NoError(t, err)

	r := setupRouter(m, "")
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+rawKey)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "usr_1")
}

func TestMiddleware_InvalidKeyIsAnonymous(t *testing.T) {
	r := setupRouter(NewManager(NewMemoryStore()), "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/open", nil)
	req.Header.Set("Authorization", "Bearer sk_bogus")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":""`)
}

func TestRequireAdmin(t *testing.T) {
	r := setupRouter(NewManager(NewMemoryStore()), "topsecret")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/admin", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-Admin-Secret", "topsecret")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_DisabledWhenUnset(t *testing.T) {
	r := setupRouter(NewManager(NewMemoryStore()), "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("X-Admin-Secret", "anything")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
