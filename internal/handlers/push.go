package handlers

import (
	"net/http"

	"nudge/internal/auth"
	"nudge/internal/models"

	"github.com/gin-gonic/gin"
)

// VAPIDPublicKey returns the application server key browsers subscribe with
func (h *Handler) VAPIDPublicKey(c *gin.Context) {
	if h.vapidKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidKey})
}

// ListSubscriptions returns the tenant's registered devices
func (h *Handler) ListSubscriptions(c *gin.Context) {
	subs, err := h.subscriptions.List(c.Request.Context(), auth.TenantID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

// RegisterSubscription stores a browser push subscription
func (h *Handler) RegisterSubscription(c *gin.Context) {
	var request models.RegisterPushSubscriptionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.badRequest(c, err)
		return
	}

	sub, err := h.subscriptions.Register(c.Request.Context(), auth.TenantID(c), request, c.Request.UserAgent())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// UnregisterSubscription forgets one of the tenant's devices
func (h *Handler) UnregisterSubscription(c *gin.Context) {
	var request models.UnregisterPushSubscriptionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.badRequest(c, err)
		return
	}

	if err := h.subscriptions.Unregister(c.Request.Context(), auth.TenantID(c), request.Endpoint); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
