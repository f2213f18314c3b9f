package handlers

import (
	"net/http"

	"nudge/internal/auth"
	"nudge/internal/models"

	"github.com/gin-gonic/gin"
)

// GetPreferences returns the tenant's reminder policy
func (h *Handler) GetPreferences(c *gin.Context) {
	pref, err := h.preferences.Get(c.Request.Context(), auth.TenantID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

// UpdatePreferences changes the allow-listed preference fields
func (h *Handler) UpdatePreferences(c *gin.Context) {
	var request models.UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.badRequest(c, err)
		return
	}

	pref, err := h.preferences.Update(c.Request.Context(), auth.TenantID(c), request)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

// GetAnalytics returns the learned timing model
func (h *Handler) GetAnalytics(c *gin.Context) {
	a, err := h.analytics.Snapshot(c.Request.Context(), auth.TenantID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
