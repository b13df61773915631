package websocket

import (
	"time"

	"github.com/gin-gonic/gin"

	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/port/inbound"
)

// InitWebSocketRouter initializes WebSocket routes
func InitWebSocketRouter(
	logger logger.Logger,
	registry *hub.Registry,
	notifications inbound.NotificationUseCase,
	writeTimeout time.Duration,
	auth gin.HandlerFunc,
	internal gin.HandlerFunc,
	rg *gin.RouterGroup,
) {
	wsHandler := NewWebSocketHandler(registry, notifications, writeTimeout, logger)

	wsGroup := rg.Group("/ws")
	wsGroup.GET("", auth, wsHandler.Connect)

	apiGroup := rg.Group("/api/v1/ws")
	apiGroup.GET("/connections", auth, internal, wsHandler.GetConnections)
}
