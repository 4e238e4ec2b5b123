package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	"github.com/yukikurage/task-tracker-api/internal/hub"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"github.com/yukikurage/task-tracker-api/internal/services"
	"golang.org/x/net/websocket"
)

type hubTestEnv struct {
	server   *httptest.Server
	registry *hub.Registry
	tokens   *services.TokenService
}

func setupHubTestEnv(t *testing.T) hubTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logging.Discard()
	tokens, err := services.NewTokenService(testConfig(), log)
	require.NoError(t, err)

	registry := hub.NewRegistry(log)
	r := gin.New()
	r.GET(constants.NotificationHubPath, NewHubHandler(registry, tokens, log).Connect)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hubTestEnv{server: srv, registry: registry, tokens: tokens}
}

func (env hubTestEnv) dial(query string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + constants.NotificationHubPath + query
	return websocket.Dial(wsURL, "", env.server.URL)
}

func TestHubHandler_PushesFramesToConnectedUser(t *testing.T) {
	env := setupHubTestEnv(t)

	token, _, err := env.tokens.IssueAccessToken(7, "alice")
	require.NoError(t, err)

	conn, err := env.dial("?access_token=" + token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return env.registry.Connections(7) == 1 }, 2*time.Second, 10*time.Millisecond)

	delivered := env.registry.PublishToUser(7, hub.Frame{
		Type:    constants.EventReceiveNotification,
		Payload: map[string]interface{}{"message": "You have been assigned task: Ship"},
	})
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 0, env.registry.PublishToUser(8, hub.Frame{Type: constants.EventReceiveNotification}))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	require.NoError(t, websocket.JSON.Receive(conn, &frame))
	assert.Equal(t, constants.EventReceiveNotification, frame.Type)
	assert.Contains(t, string(frame.Payload), "You have been assigned task: Ship")
}

func TestHubHandler_UnregistersOnClose(t *testing.T) {
	env := setupHubTestEnv(t)

	token, _, err := env.tokens.IssueAccessToken(7, "alice")
	require.NoError(t, err)

	first, err := env.dial("?access_token=" + token)
	require.NoError(t, err)
	second, err := env.dial("?access_token=" + token)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	require.Eventually(t, func() bool { return env.registry.Connections(7) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return env.registry.Connections(7) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubHandler_RejectsBeforeUpgrade(t *testing.T) {
	env := setupHubTestEnv(t)

	_, err := env.dial("")
	assert.Error(t, err)
	_, err = env.dial("?access_token=garbage")
	assert.Error(t, err)
	assert.Equal(t, 0, env.registry.Connections(7))

	resp, err := http.Get(env.server.URL + constants.NotificationHubPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
