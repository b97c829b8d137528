package main

import (
	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/middleware"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/tracing"
)

func setupRouter(api *API, limiter middleware.Limiter) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), tracing.Middleware(), middleware.Logger(api.logger))

	// Health check
	router.GET("/health", api.healthCheck)

	v1 := router.Group("/api/v1")
	if limiter != nil {
		v1.Use(middleware.RateLimit(limiter, api.logger))
	}

	sessions := v1.Group("/sessions")
	{
		sessions.POST("", api.createSession)
		sessions.GET("", api.listSessions)
		sessions.GET("/:id", api.getSession)
		sessions.PUT("/:id/profile", api.updateProfile)
		sessions.DELETE("/:id", api.deleteSession)

		// Streaming
		sessions.GET("/:id/stream", api.streamSession)
		sessions.GET("/:id/original", api.streamOriginal)
		sessions.POST("/:id/stop", api.stopSession)

		// Sub-streams
		sessions.POST("/:id/substreams", api.openSubStream)
		sessions.DELETE("/:id/substreams/:token", api.closeSubStream)

		if api.history != nil {
			sessions.GET("/:id/events", api.sessionEvents)
		}
	}

	return router
}
