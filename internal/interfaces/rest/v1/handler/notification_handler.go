package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-notification-hub/internal/domain/notification"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/interfaces/middleware"
	"go-notification-hub/internal/port/inbound"
)

type NotificationHandler struct {
	notifications inbound.NotificationUseCase
	logger        logger.Logger
}

type SendNotificationRequest struct {
	ReceiverKey   string `json:"receiverKey" binding:"required"`
	ReceiverEmail string `json:"receiverEmail"`
	Type          string `json:"type" binding:"required"`
	Content       string `json:"content" binding:"required"`
	URL           string `json:"url"`
}

type NotificationResponse struct {
	ID          string    `json:"id"`
	ReceiverKey string    `json:"receiverKey"`
	Type        string    `json:"type"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:          n.ID,
		ReceiverKey: n.Receiver.Key,
		Type:        string(n.Type),
		Content:     n.Content,
		URL:         n.URL,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
}

func NewNotificationHandler(notifications inbound.NotificationUseCase, logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		logger:        logger.WithField("handler", "notification"),
	}
}

// Send persists a notification and pushes it to the receiver's open
// connections. It is called by the funding and donation services.
func (h *NotificationHandler) Send(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnf("Invalid send request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid notification format",
		})
		return
	}

	typ, err := notification.ParseType(req.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.notifications.Send(
		c.Request.Context(),
		notification.Receiver{Key: req.ReceiverKey, Email: req.ReceiverEmail},
		typ,
		req.Content,
		req.URL,
	)
	if err != nil {
		if errors.Is(err, notification.ErrInvalidReceiver) || errors.Is(err, notification.ErrInvalidType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Errorf("Failed to send notification to %s: %v", req.ReceiverKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to send notification",
		})
		return
	}

	c.JSON(http.StatusCreated, toResponse(n))
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = v
	}

	list, err := h.notifications.List(c.Request.Context(), middleware.UserKey(c), limit)
	if err != nil {
		h.logger.Errorf("Failed to list notifications: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list notifications",
		})
		return
	}

	out := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toResponse(n))
	}
	c.JSON(http.StatusOK, gin.H{"notifications": out})
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	err := h.notifications.MarkAsRead(c.Request.Context(), c.Param("id"), middleware.UserKey(c))
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, notification.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
	default:
		h.logger.Errorf("Failed to mark notification %s read: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update notification",
		})
	}
}
