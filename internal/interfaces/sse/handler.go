package sse

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/interfaces/middleware"
	"go-notification-hub/internal/port/inbound"
)

// lastEventIDQuery is read when the Last-Event-ID header is absent, for
// clients that cannot set headers on reconnect.
const lastEventIDQuery = "lastEventId"

type ServerSentEventHandler struct {
	registry      *hub.Registry
	notifications inbound.NotificationUseCase
	writeTimeout  time.Duration
	keepAlive     time.Duration
	logger        logger.Logger
}

func NewServerSentEventHandler(
	registry *hub.Registry,
	notifications inbound.NotificationUseCase,
	writeTimeout time.Duration,
	keepAlive time.Duration,
	logger logger.Logger,
) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		registry:      registry,
		notifications: notifications,
		writeTimeout:  writeTimeout,
		keepAlive:     keepAlive,
		logger:        logger.WithField("handler", "sse"),
	}
}

// Connect opens an event stream for the authenticated user and holds the
// request until the connection reaches a terminal state.
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
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

	lastEventID := c.GetHeader("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = c.Query(lastEventIDQuery)
	}

	ctx := logger.ContextWithFields(c.Request.Context(), logger.Fields{
		"user_key":  userKey,
		"transport": hub.TransportSSE,
	})
	log := h.logger.WithContext(ctx)
	stream := hub.NewSSEStream(ctx, c.Writer, h.writeTimeout, h.keepAlive, log)

	conn, err := h.notifications.Subscribe(ctx, userKey, lastEventID, stream)
	if err != nil {
		log.Errorf("Failed to subscribe: %v", err)
		_ = stream.Close()
		stream.Wait()
		if !c.Writer.Written() {
			c.Writer.Header().Del("Content-Type")
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to open event stream",
			})
		}
		return
	}

	<-conn.Done()
	// The response writer must not be touched once the handler returns.
	stream.Wait()
	log.Infof("SSE connection %s closed (%s)", conn.ID(), conn.State())
}

// GetConnections lists the registered push connections.
func (h *ServerSentEventHandler) GetConnections(c *gin.Context) {
	connections := h.registry.Connections()
	connectionInfo := make([]gin.H, len(connections))

	for i, conn := range connections {
		connectionInfo[i] = gin.H{
			"id":         conn.ID(),
			"user_key":   conn.UserKey(),
			"type":       conn.Type(),
			"state":      conn.State().String(),
			"created_at": conn.CreatedAt().Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"cached_events":     h.registry.CachedCount(),
		"connections":       connectionInfo,
		"hub_running":       h.registry.IsRunning(),
	})
}
