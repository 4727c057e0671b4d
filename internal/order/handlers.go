package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nkram/creditrail/internal/auth"
	"github.com/nkram/creditrail/internal/validation"
)

// Handler provides HTTP endpoints for orders.
type Handler struct {
	store Store
}

// NewHandler creates a new order handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterProtectedRoutes sets up auth-required order routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/orders", h.CreateOrder)
	r.GET("/orders", h.ListOrders)
	r.GET("/orders/:orderId", h.GetOrder)
}

type createOrderRequest struct {
	OrderID          string `json:"orderId" binding:"required"`
	Amount           int64  `json:"amount" binding:"required"`
	CreditsRequested int64  `json:"creditsRequested" binding:"required"`
	Receipt          string `json:"receipt"`
}

// CreateOrder handles POST /v1/orders. The order id comes from the
// provider's checkout session; we record it before the payment happens so
// the webhook has something to reconcile against.
func (h *Handler) CreateOrder(c *gin.Context) {
	userID := auth.UserID(c)

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if err := validation.OrderID(req.OrderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if err := validation.Amount(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}
	if req.CreditsRequested <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "creditsRequested must be positive",
		})
		return
	}

	o := &Order{
		OrderID:          req.OrderID,
		UserID:           userID,
		Amount:           req.Amount,
		CreditsRequested: req.CreditsRequested,
		Receipt:          req.Receipt,
	}
	if err := h.store.Create(c.Request.Context(), o); err != nil {
		if errors.Is(err, ErrOrderExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "conflict",
				"message": "Order already exists",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": o})
}

// GetOrder handles GET /v1/orders/:orderId
func (h *Handler) GetOrder(c *gin.Context) {
	userID := auth.UserID(c)
	orderID := c.Param("orderId")

	o, err := h.store.GetByOrderID(c.Request.Context(), orderID)
	if err != nil || o.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Order not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ListOrders handles GET /v1/orders
func (h *Handler) ListOrders(c *gin.Context) {
	userID := auth.UserID(c)

	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	orders, err := h.store.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}
