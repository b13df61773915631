package sse

import (
	"time"

	"github.com/gin-gonic/gin"

	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/port/inbound"
)

func InitSSERouter(
	logger logger.Logger,
	registry *hub.Registry,
	notifications inbound.NotificationUseCase,
	writeTimeout time.Duration,
	keepAlive time.Duration,
	auth gin.HandlerFunc,
	internal gin.HandlerFunc,
	rg *gin.RouterGroup,
) {
	sseHandler := NewServerSentEventHandler(registry, notifications, writeTimeout, keepAlive, logger)

	// SSE connection endpoint
	sseGroup := rg.Group("/sse")
	sseGroup.GET("", auth, sseHandler.Connect)

	apiGroup := rg.Group("/api/v1/sse")
	apiGroup.GET("/connections", auth, internal, sseHandler.GetConnections)
}
