package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nkram/creditrail/internal/auth"
	"github.com/nkram/creditrail/internal/idgen"
	"github.com/nkram/creditrail/internal/validation"
)

// Handler provides HTTP endpoints for user accounts.
type Handler struct {
	store Store
	keys  *auth.Manager
}

// NewHandler creates a new user handler.
func NewHandler(store Store, keys *auth.Manager) *Handler {
	return &Handler{store: store, keys: keys}
}

// RegisterRoutes sets up the public signup route.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/signup", h.Signup)
}

// RegisterProtectedRoutes sets up auth-required user routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
}

type signupRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"name"`
}

// Signup handles POST /v1/signup. It creates the account and issues the
// API key in one response; the raw key is shown exactly once.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	u := &User{
		ID:    idgen.WithPrefix("usr_"),
		Email: validation.SanitizeString(req.Email, 254),
		Name:  validation.SanitizeString(req.Name, 200),
	}
	if err := h.store.Create(c.Request.Context(), u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "conflict",
				"message": "Email already registered",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	rawKey, _, err := h.keys.GenerateKey(c.Request.Context(), u.ID, "default")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":   u,
		"apiKey": rawKey,
	})
}

// Me handles GET /v1/me
func (h *Handler) Me(c *gin.Context) {
	u, err := h.store.Get(c.Request.Context(), auth.UserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "User not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}
