package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nkram/creditrail/internal/auth"
	"github.com/nkram/creditrail/internal/user"
)

// Handler provides HTTP endpoints for credit operations.
type Handler struct {
	service *Service
}

// NewHandler creates a new ledger handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes sets up auth-required credit routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/credits/balance", h.GetBalance)
	r.GET("/credits/history", h.GetHistory)
	r.POST("/credits/debit", h.Debit)
	r.POST("/credits/refund", h.Refund)
}

// RegisterAdminRoutes sets up admin-only credit routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/credits/adjust", h.AdminAdjust)
	r.GET("/credits/:userId/reconcile", h.Reconcile)
}

// GetBalance handles GET /v1/credits/balance
func (h *Handler) GetBalance(c *gin.Context) {
	userID := auth.UserID(c)

	balance, err := h.service.Balance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "User not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": userID, "credits": balance})
}

// GetHistory handles GET /v1/credits/history
func (h *Handler) GetHistory(c *gin.Context) {
	userID := auth.UserID(c)

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	entries, err := h.service.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

type debitRequest struct {
	Amount    int64  `json:"amount" binding:"required"`
	Reason    string `json:"reason"`
	RequestID string `json:"requestId"`
}

// Debit handles POST /v1/credits/debit
func (h *Handler) Debit(c *gin.Context) {
	userID := auth.UserID(c)

	var req debitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	entry, err := h.service.Debit(c.Request.Context(), userID, req.Amount, req.Reason, req.RequestID)
	if err != nil {
		h.writeDebitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry, "credits": entry.BalanceAfter})
}

// Refund handles POST /v1/credits/refund. It compensates a previous
// debit after a failed service delivery.
func (h *Handler) Refund(c *gin.Context) {
	userID := auth.UserID(c)

	var req debitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	entry, err := h.service.CompensateDebit(c.Request.Context(), userID, req.Amount, req.Reason, req.RequestID)
	if err != nil {
		h.writeDebitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry, "credits": entry.BalanceAfter})
}

type adjustRequest struct {
	UserID string `json:"userId" binding:"required"`
	Delta  int64  `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// AdminAdjust handles POST /v1/admin/credits/adjust
func (h *Handler) AdminAdjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	entry, err := h.service.AdminAdjust(c.Request.Context(), req.UserID, req.Delta, req.Reason)
	if err != nil {
		h.writeDebitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry, "credits": entry.BalanceAfter})
}

// Reconcile handles GET /v1/admin/credits/:userId/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	userID := c.Param("userId")

	cached, computed, err := h.service.Reconcile(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "User not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":     userID,
		"cached":     cached,
		"computed":   computed,
		"consistent": cached == computed,
	})
}

func (h *Handler) writeDebitError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, user.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":   "insufficient_credits",
			"message": "Not enough credits for this operation",
		})
	case errors.Is(err, user.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "User not found",
		})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingRequestID):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
