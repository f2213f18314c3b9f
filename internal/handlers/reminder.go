package handlers

import (
	"fmt"
	"net/http"
	"time"

	"nudge/internal/auth"

	"github.com/gin-gonic/gin"
)

// RecordInteractionRequest is the body of POST /reminders/:id/interactions
type RecordInteractionRequest struct {
	Action   string                 `json:"action" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

// ListReminders returns the tenant's live reminders in an optional window
func (h *Handler) ListReminders(c *gin.Context) {
	from, err := parseTimeQuery(c, "from")
	if err != nil {
		h.badRequest(c, err)
		return
	}
	to, err := parseTimeQuery(c, "to")
	if err != nil {
		h.badRequest(c, err)
		return
	}

	views, err := h.reminders.ListLive(c.Request.Context(), auth.TenantID(c), from, to)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": views})
}

// GetReminder returns one reminder with its interaction log
func (h *Handler) GetReminder(c *gin.Context) {
	view, err := h.reminders.Get(c.Request.Context(), auth.TenantID(c), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RecordInteraction applies a client action (delivered, snoozed, dismissed, completed)
func (h *Handler) RecordInteraction(c *gin.Context) {
	var request RecordInteractionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		h.badRequest(c, err)
		return
	}

	view, err := h.interactions.RecordInteraction(c.Request.Context(), auth.TenantID(c), c.Param("id"), request.Action, request.Metadata)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// AcknowledgeReminder is called by the service worker when a push arrives
func (h *Handler) AcknowledgeReminder(c *gin.Context) {
	view, err := h.interactions.Acknowledge(c.Request.Context(), auth.TenantID(c), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func parseTimeQuery(c *gin.Context, name string) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC3339 timestamp", name)
	}
	return t.UTC(), nil
}
