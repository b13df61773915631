package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
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

type testEnv struct {
	server      *httptest.Server
	registry    *hub.Registry
	broadcaster *facade.NotificationBroadcaster
}

func setupEnv(t *testing.T, startRegistry bool) *testEnv {
	t.Helper()

	log := logger.NewNopLogger()
	clock := clockwork.NewRealClock()

	db, err := persistence.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry := hub.NewRegistry(log, hub.WithClock(clock))
	if startRegistry {
		require.NoError(t, registry.Start(context.Background()))
		t.Cleanup(func() { _ = registry.Stop(context.Background()) })
	}

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
	InitSSERouter(log, registry, broadcaster, time.Second, 0,
		middleware.JWTAuth(testSecret), middleware.RequireScope(middleware.ScopeInternal), router.Group(""))

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, registry: registry, broadcaster: broadcaster}
}

func token(t *testing.T, userKey string, scopes ...string) string {
	t.Helper()
	tok, err := middleware.GenerateToken(testSecret, userKey, time.Hour, scopes...)
	require.NoError(t, err)
	return tok
}

// readEvent reads one SSE frame and returns its fields.
func readEvent(t *testing.T, r *bufio.Reader) map[string]string {
	t.Helper()
	fields := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(fields) > 0 {
				return fields
			}
			continue
		}
		name, value, _ := strings.Cut(line, ":")
		fields[name] = value
	}
}

func TestConnect_StreamsHandshakeAndNotifications(t *testing.T) {
	env := setupEnv(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.server.URL+"/sse", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := bufio.NewReader(resp.Body)

	handshake := readEvent(t, body)
	assert.True(t, strings.HasPrefix(handshake["id"], "alice_"))
	assert.Equal(t, hub.EventName, handshake["event"])
	assert.Contains(t, handshake["data"], "EventStream Created. [userKey=alice]")

	require.Len(t, env.registry.FindAllByUserPrefix("alice"), 1)

	_, err = env.broadcaster.Send(context.Background(),
		notification.Receiver{Key: "alice"}, notification.TypeDonation, "someone donated", "/f/1")
	require.NoError(t, err)

	ev := readEvent(t, body)
	assert.True(t, strings.HasPrefix(ev["id"], "alice_"))
	assert.Contains(t, ev["data"], `"content":"someone donated"`)
	assert.Contains(t, ev["data"], `"type":"DONATION"`)

	cancel()

	assert.Eventually(t, func() bool {
		return len(env.registry.FindAllByUserPrefix("alice")) == 0
	}, 2*time.Second, 10*time.Millisecond, "disconnect must deregister the connection")
}

func TestConnect_RequiresToken(t *testing.T) {
	env := setupEnv(t, true)

	resp, err := http.Get(env.server.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConnect_UnavailableWhenRegistryStopped(t *testing.T) {
	env := setupEnv(t, false)

	resp, err := http.Get(env.server.URL + "/sse?token=" + token(t, "alice"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetConnections(t *testing.T) {
	env := setupEnv(t, true)
	rec := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/sse/connections?token="+token(t, "ops", middleware.ScopeInternal), nil)
	env.server.Config.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_connections":0`)
	assert.Contains(t, rec.Body.String(), `"hub_running":true`)
}

func TestGetConnections_RejectsUserToken(t *testing.T) {
	env := setupEnv(t, true)
	rec := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sse/connections?token="+token(t, "alice"), nil)
	env.server.Config.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
