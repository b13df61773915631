package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/interfaces/middleware"
	"go-notification-hub/internal/port/inbound"
)

const lastEventIDQuery = "lastEventId"

// WebSocketHandler serves the same notification stream as the SSE endpoint
// over a WebSocket. Each frame is the JSON form of one hub.Event.
type WebSocketHandler struct {
	registry      *hub.Registry
	notifications inbound.NotificationUseCase
	writeTimeout  time.Duration
	logger        logger.Logger
	upgrader      websocket.Upgrader
}

func NewWebSocketHandler(
	registry *hub.Registry,
	notifications inbound.NotificationUseCase,
	writeTimeout time.Duration,
	logger logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		registry:      registry,
		notifications: notifications,
		writeTimeout:  writeTimeout,
		logger:        logger.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Callers are authenticated by token, not by origin.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect upgrades the request and holds it until the connection reaches a
// terminal state.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if !h.registry.IsRunning() {
		h.logger.Error("Registry is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	userKey := middleware.UserKey(c)
	if userKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user key is required"})
		return
	}

	log := h.logger.WithFields(logger.Fields{
		"user_key":  userKey,
		"transport": hub.TransportWebSocket,
	})

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	stream := hub.NewWebSocketStream(ws, h.writeTimeout, log)

	// The upgraded connection outlives the request context.
	conn, err := h.notifications.Subscribe(stream.Context(), userKey, c.Query(lastEventIDQuery), stream)
	if err != nil {
		log.Errorf("Failed to subscribe: %v", err)
		_ = stream.Close()
		return
	}

	<-conn.Done()
	log.Infof("WebSocket connection %s closed (%s)", conn.ID(), conn.State())
}

// GetConnections lists the WebSocket connections only.
func (h *WebSocketHandler) GetConnections(c *gin.Context) {
	connectionInfo := make([]gin.H, 0)

	for _, conn := range h.registry.Connections() {
		if conn.Type() != hub.TransportWebSocket {
			continue
		}
		connectionInfo = append(connectionInfo, gin.H{
			"id":       conn.ID(),
			"user_key": conn.UserKey(),
			"type":     conn.Type(),
			"state":    conn.State().String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connectionInfo),
		"connections":       connectionInfo,
		"hub_running":       h.registry.IsRunning(),
	})
}
