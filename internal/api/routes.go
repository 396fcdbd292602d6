package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouteOptions configures the optional parts of the router.
type RouteOptions struct {
	// JWTSecret protects /api/v1 when set.
	JWTSecret string
	JWTIssuer string
	// RateLimit applies to the public /analyze route when RequestsPerSecond
	// is positive.
	RequestsPerSecond float64
	Burst             int
	// Metrics is served at /metrics when not nil.
	Metrics http.Handler
}

// SetupRoutes registers all endpoints on router.
func SetupRoutes(router *gin.Engine, h *Handler, opts RouteOptions) {
	router.GET("/health", h.Health)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	analyze := []gin.HandlerFunc{}
	if opts.RequestsPerSecond > 0 {
		analyze = append(analyze, RateLimitMiddleware(opts.RequestsPerSecond, opts.Burst))
	}
	analyze = append(analyze, h.Analyze)
	router.POST("/analyze", analyze...)

	v1 := router.Group("/api/v1")
	if opts.JWTSecret != "" {
		v1.Use(JWTMiddleware(opts.JWTSecret, opts.JWTIssuer))
	}
	{
		v1.POST("/classify", h.Classify)
		v1.POST("/classify/batch", h.ClassifyBatch)
		v1.GET("/history", h.History)
		v1.GET("/stats", h.Stats)
	}
}
