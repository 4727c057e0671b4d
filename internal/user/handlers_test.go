package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkram/creditrail/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSignup_IssuesAPIKey(t *testing.T) {
	store := NewMemoryStore()
	keys := auth.NewManager(auth.NewMemoryStore())

	r := gin.New()
	NewHandler(store, keys).RegisterRoutes(r.Group("/v1"))

	body := `{"email": "alice@example.com", "name": "Alice"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/signup", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		APIKey string `json:"apiKey"`
		User   User   `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.APIKey, "sk_"))
	assert.Equal(t, int64(0), resp.User.Credits)

	// The issued key authenticates.
	key, err := keys.ValidateKey(t.Context(), resp.APIKey)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, key.UserID)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	store := NewMemoryStore()
	keys := auth.NewManager(auth.NewMemoryStore())

	r := gin.New()
	NewHandler(store, keys).RegisterRoutes(r.Group("/v1"))

	body := `{"email": "alice@example.com"}`
	for i, want := range []int{http.StatusCreated, http.StatusConflict} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/v1/signup", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, "request %d", i)
	}
}

func TestSignup_InvalidEmail(t *testing.T) {
	store := NewMemoryStore()
	keys := auth.NewManager(auth.NewMemoryStore())

	r := gin.New()
	NewHandler(store, keys).RegisterRoutes(r.Group("/v1"))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/signup", strings.NewReader(`{"email": "not-an-email"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMe(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Create(t.Context(), &User{
		ID: "usr_1", Email: "alice@example.com", Credits: 7,
	}))

	r := gin.New()
	v1 := r.Group("/v1", func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, "usr_1")
	})
	NewHandler(store, auth.NewManager(auth.NewMemoryStore())).RegisterProtectedRoutes(v1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/me", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"credits":7`)
}
