package handlers

import (
	"nudge/internal/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public, metrics and authenticated routes
func NewRouter(h *Handler, tokens *auth.TokenService, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	// Configure trusted proxies
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	if len(allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	// Basic routes
	router.GET("/", HomeHandler)
	router.GET("/health", HealthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected routes (auth required)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware(tokens))
	h.Register(api)

	return router
}
