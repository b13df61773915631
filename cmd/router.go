package main

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-notification-hub/internal/infrastructure/config"
	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/interfaces/middleware"
	"go-notification-hub/internal/interfaces/rest/v1/handler"
	"go-notification-hub/internal/interfaces/sse"
	"go-notification-hub/internal/interfaces/websocket"
	"go-notification-hub/internal/port/inbound"
)

func InitRouter(
	cfg *config.Config,
	registry *hub.Registry,
	notifications inbound.NotificationUseCase,
	db *sql.DB,
	log logger.Logger,
) http.Handler {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	rootGroup := router.Group("")

	// Health check endpoint
	rootGroup.GET("/hub/status", func(c *gin.Context) {
		isRunning := registry.IsRunning()
		dbErr := pingDatabase(c.Request.Context(), db)

		status, code := "healthy", http.StatusOK
		if !isRunning || dbErr != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
			log.Warnf("Hub status check failed - Running: %v, DB: %v", isRunning, dbErr)
		}

		c.JSON(code, gin.H{
			"status":        status,
			"hub_running":   isRunning,
			"database_ok":   dbErr == nil,
			"connections":   registry.ConnectionCount(),
			"cached_events": registry.CachedCount(),
		})
	})

	rootGroup.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.JWTAuth(cfg.JWTSecret)
	internal := middleware.RequireScope(middleware.ScopeInternal)

	handler.InitNotificationRouter(log, notifications, auth, internal, rootGroup)
	sse.InitSSERouter(log, registry, notifications, cfg.PushTimeout, cfg.SSEKeepAlive, auth, internal, rootGroup)
	websocket.InitWebSocketRouter(log, registry, notifications, cfg.PushTimeout, auth, internal, rootGroup)

	return router
}
