package handler

import (
	"github.com/gin-gonic/gin"

	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/port/inbound"
)

// InitNotificationRouter registers the notification API. Reads and
// acknowledgements act on the caller's own inbox; creating a notification
// additionally passes internal.
func InitNotificationRouter(
	logger logger.Logger,
	notifications inbound.NotificationUseCase,
	auth gin.HandlerFunc,
	internal gin.HandlerFunc,
	rg *gin.RouterGroup,
) {
	h := NewNotificationHandler(notifications, logger)

	apiGroup := rg.Group("/api/v1/notifications", auth)
	{
		apiGroup.POST("", internal, h.Send)
		apiGroup.GET("", h.List)
		apiGroup.PATCH("/:id/read", h.MarkAsRead)
	}
}
