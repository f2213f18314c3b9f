package handlers

import (
	"errors"
	"net/http"
	"time"

	"nudge/internal/logger"
	"nudge/internal/services"

	"github.com/gin-gonic/gin"
)

// Handler serves the tenant-facing reminder API
type Handler struct {
	reminders     *services.ReminderService
	interactions  *services.InteractionService
	preferences   *services.PreferenceService
	analytics     *services.AnalyticsService
	subscriptions *services.SubscriptionService
	vapidKey      string
	log           *logger.Logger
}

// Deps are the services a Handler is built from
type Deps struct {
	Reminders      *services.ReminderService
	Interactions   *services.InteractionService
	Preferences    *services.PreferenceService
	Analytics      *services.AnalyticsService
	Subscriptions  *services.SubscriptionService
	VAPIDPublicKey string
	Log            *logger.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		reminders:     d.Reminders,
		interactions:  d.Interactions,
		preferences:   d.Preferences,
		analytics:     d.Analytics,
		subscriptions: d.Subscriptions,
		vapidKey:      d.VAPIDPublicKey,
		log:           d.Log.With("component", "http"),
	}
}

// Register mounts the API routes on an authenticated router group
func (h *Handler) Register(api *gin.RouterGroup) {
	reminders := api.Group("/reminders")
	{
		reminders.GET("", h.ListReminders)
		reminders.GET("/preferences", h.GetPreferences)
		reminders.PUT("/preferences", h.UpdatePreferences)
		reminders.GET("/analytics", h.GetAnalytics)
		reminders.GET("/:id", h.GetReminder)
		reminders.POST("/:id/interactions", h.RecordInteraction)
		reminders.POST("/:id/ack", h.AcknowledgeReminder)
	}

	push := api.Group("/push")
	{
		push.GET("/vapid-public-key", h.VAPIDPublicKey)
		push.GET("/subscriptions", h.ListSubscriptions)
		push.POST("/subscriptions", h.RegisterSubscription)
		push.DELETE("/subscriptions", h.UnregisterSubscription)
	}
}

// handleError maps service errors to a status code and a client-safe message
func (h *Handler) handleError(c *gin.Context, err error) {
	status, message := http.StatusInternalServerError, "internal server error"
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrInvalidAction),
		errors.Is(err, services.ErrInvalidSnooze),
		errors.Is(err, services.ErrInvalidPreference),
		errors.Is(err, services.ErrInvalidWindow),
		errors.Is(err, services.ErrInvalidSubscription):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrConcurrentUpdate):
		status, message = http.StatusConflict, err.Error()
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	} else {
		h.log.Debug("request rejected", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": message})
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.log.Debug("invalid input", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.FullPath() == "/health" || c.FullPath() == "/metrics" {
			return
		}
		h.log.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

// HomeHandler handles requests to the root path "/"
func HomeHandler(c *gin.Context) {
	c.String(http.StatusOK, "nudge reminder service")
}

// HealthHandler is a simple health check endpoint
func HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
