package recon

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nkram/creditrail/internal/auth"
	"github.com/nkram/creditrail/internal/logging"
	"github.com/nkram/creditrail/internal/order"
	"github.com/nkram/creditrail/internal/provider"
)

// Handler provides the webhook and payment verification endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a new reconciliation handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterWebhookRoutes sets up the provider-facing webhook route. No API
// key auth; the HMAC signature is the authentication.
func (h *Handler) RegisterWebhookRoutes(r *gin.Engine) {
	r.POST("/webhooks/provider", h.HandleWebhook)
}

// RegisterProtectedRoutes sets up auth-required payment routes.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/payments/verify", h.VerifyPayment)
}

// RegisterAdminRoutes sets up admin-only reconciliation routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/unreconciled", h.ListUnreconciled)
	r.GET("/events", h.EventCounts)
}

// HandleWebhook handles POST /webhooks/provider.
//
// Responses follow the provider's retry contract: 2xx acknowledges the
// delivery (including duplicates and business rejections recorded on the
// marker), 4xx rejects it permanently, 5xx asks for a retry.
func (h *Handler) HandleWebhook(c *gin.Context) {
	rawBody, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "unable to read request body",
		})
		return
	}

	sig := c.GetHeader(provider.SignatureHeader)
	outcome, err := h.service.ProcessWebhook(c.Request.Context(), rawBody, sig)
	if err != nil {
		switch {
		case errors.Is(err, ErrSignatureInvalid):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_signature",
				"message": "signature verification failed",
			})
		case errors.Is(err, ErrMalformed):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "malformed event payload",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "event processing failed, retry later",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": outcome})
}

type verifyRequest struct {
	OrderID   string `json:"orderId" binding:"required"`
	PaymentID string `json:"paymentId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// VerifyPayment handles POST /v1/payments/verify.
//
// This is the browser's return path after checkout. It confirms the
// client signature and reports the order's reconciliation state; the
// credits themselves arrive via the webhook, which may land before or
// after this call.
func (h *Handler) VerifyPayment(c *gin.Context) {
	userID := auth.UserID(c)

	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	o, balance, err := h.service.VerifyCheckout(c.Request.Context(), userID, req.OrderID, req.PaymentID, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrSignatureInvalid):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "invalid_signature",
				"message": "signature verification failed",
			})
		case errors.Is(err, order.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "not_found",
				"message": "Order not found",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   o,
		"credits": balance,
		"message": "payment verified; credits are granted by the provider webhook",
	})
}

// ListUnreconciled handles GET /v1/admin/unreconciled
func (h *Handler) ListUnreconciled(c *gin.Context) {
	olderThan := 15 * time.Minute
	if v := c.Query("olderThan"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil && parsed >= 0 {
			olderThan = parsed
		}
	}
	limit := 100
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	orders, err := h.service.Unreconciled(c.Request.Context(), olderThan, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	if len(orders) > 0 {
		logging.L(c.Request.Context()).Warn("unreconciled orders requested",
			"count", len(orders))
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// EventCounts handles GET /v1/admin/events
func (h *Handler) EventCounts(c *gin.Context) {
	counts, err := h.service.EventCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": counts})
}
