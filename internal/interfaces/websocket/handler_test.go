package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-notification-hub/internal/application/facade"
	"go-notification-hub/internal/domain/notification"
	"go-notification-hub/internal/infrastructure/hub"
	"go-notification-hub/internal/infrastructure/logger"
	"go-notification-hub/internal/infrastructure/persistence"
	"go-notification-hub/internal/interfaces/middleware"
)

const testSecret = "test-secret-key-for-unit-tests"

func init() {
	gin.SetMode(gin.TestMode)
}

type wireEvent struct {
	ID   string         `json:"id"`
	Name string         `json:"event"`
	Data map[string]any `json:"data"`
}

func setupServer(t *testing.T) (*httptest.Server, *hub.Registry, *facade.NotificationBroadcaster) {
	t.Helper()

	log := logger.NewNopLogger()
	clock := clockwork.NewRealClock()

	db, err := persistence.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := hub.NewRegistry(log, hub.WithClock(clock))
	require.NoError(t, registry.Start(context.Background()))
	t.Cleanup(func() { _ = registry.Stop(context.Background()) })

	broadcaster := facade.NewNotificationBroadcaster(
		registry,
		hub.NewIDGenerator(clock),
		persistence.NewNotificationStore(db, clock),
		nil,
		clock,
		facade.DefaultBroadcasterConfig(),
		log,
	)

	router := gin.New()
	InitWebSocketRouter(log, registry, broadcaster, time.Second,
		middleware.JWTAuth(testSecret), middleware.RequireScope(middleware.ScopeInternal), router.Group(""))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, registry, broadcaster
}

func TestConnect_StreamsOverWebSocket(t *testing.T) {
	server, registry, broadcaster := setupServer(t)

	tok, err := middleware.GenerateToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tok
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var handshake wireEvent
	require.NoError(t, ws.ReadJSON(&handshake))
	assert.True(t, strings.HasPrefix(handshake.ID, "alice_"))
	assert.Equal(t, hub.EventName, handshake.Name)
	assert.Equal(t, "EventStream Created. [userKey=alice]", handshake.Data["message"])

	require.Eventually(t, func() bool {
		return len(registry.FindAllByUserPrefix("alice")) == 1
	}, time.Second, 10*time.Millisecond)

	_, err = broadcaster.Send(context.Background(),
		notification.Receiver{Key: "alice"}, notification.TypeFundingTimeout, "funding ended", "/f/9")
	require.NoError(t, err)

	var ev wireEvent
	require.NoError(t, ws.ReadJSON(&ev))
	assert.Equal(t, "funding ended", ev.Data["content"])
	assert.Equal(t, "FUNDING_TIMEOUT", ev.Data["type"])
	assert.Equal(t, false, ev.Data["isRead"])

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = ws.Close()

	assert.Eventually(t, func() bool {
		return len(registry.FindAllByUserPrefix("alice")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConnect_RejectsMissingToken(t *testing.T) {
	server, _, _ := setupServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetConnections_RequiresInternalScope(t *testing.T) {
	server, _, _ := setupServer(t)

	user, err := middleware.GenerateToken(testSecret, "alice", time.Hour)
	require.NoError(t, err)
	ops, err := middleware.GenerateToken(testSecret, "ops", time.Hour, middleware.ScopeInternal)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{name: "user token", token: user, status: http.StatusForbidden},
		{name: "internal token", token: ops, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws/connections?token="+tt.token, nil)
			server.Config.Handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
