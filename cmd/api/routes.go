package main

import (
	"database/sql"
	"net/http"
	"time"

	"callbridge/internal/auth"
	"callbridge/internal/calls"
	"callbridge/internal/config"
	"callbridge/internal/httpapi"
	"callbridge/internal/voiceai"
	"callbridge/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type routeDeps struct {
	cfg         config.Config
	db          *sql.DB
	rdb         *redis.Client
	authManager *auth.Manager
	callSvc     *calls.Service
	gateway     voiceai.Gateway
	engine      *calls.Engine
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.db, 2*time.Second); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := deps.rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhook: authenticated via the signature header, not
	// bearer tokens, so it stays outside the /api auth group.
	wh := httpapi.WebhookHandler{Engine: deps.engine}
	r.POST("/webhooks/voiceai", wh.HandleEvent)

	// Management API. Bearer auth applies only when configured; the
	// webhook route above is never behind it.
	api := r.Group("/api")
	if deps.authManager != nil {
		api.Use(auth.RequireAccessToken(deps.authManager))
	}
	{
		h := httpapi.Handlers{Calls: deps.callSvc, Gateway: deps.gateway}

		api.POST("/calls", h.InitiateCall)
		api.POST("/calls/web", h.CreateWebCall)
		api.GET("/calls", h.ListCalls)
		api.GET("/calls/:id", h.GetCall)

		api.POST("/phone-numbers/import", h.ImportPhoneNumber)
		api.GET("/phone-numbers", h.ListPhoneNumbers)
		api.DELETE("/phone-numbers/*number", h.DeletePhoneNumber)
	}
}
