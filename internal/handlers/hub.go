package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/task-tracker-api/internal/constants"
	apierrors "github.com/yukikurage/task-tracker-api/internal/errors"
	"github.com/yukikurage/task-tracker-api/internal/hub"
	"github.com/yukikurage/task-tracker-api/internal/logging"
	"github.com/yukikurage/task-tracker-api/internal/middleware"
	"golang.org/x/net/websocket"
)

// HubHandler upgrades authenticated requests to a websocket and streams the caller's
// notifications over it.
type HubHandler struct {
	registry  *hub.Registry
	validator middleware.TokenValidator
	log       logrus.FieldLogger
}

func NewHubHandler(registry *hub.Registry, validator middleware.TokenValidator, log logrus.FieldLogger) *HubHandler {
	return &HubHandler{
		registry:  registry,
		validator: validator,
		log:       log,
	}
}

// Connect authenticates before the upgrade. Browsers cannot set headers on a websocket
// handshake, so the token is read from the access_token query parameter first.
func (h *HubHandler) Connect(c *gin.Context) {
	log := logging.FromContext(c.Request.Context(), h.log).WithField("remote_addr", c.Request.RemoteAddr)

	token := strings.TrimSpace(c.Query(constants.QueryParamAccessToken))
	if token == "" {
		token, _ = middleware.BearerToken(c)
	}
	if token == "" {
		log.Warn("Notification hub rejected: missing access token")
		apierrors.Unauthorized(c, "")
		return
	}

	claims, err := h.validator.ValidateAccessToken(token)
	if err != nil {
		log.WithError(err).Warn("Notification hub rejected: invalid access token")
		apierrors.Unauthorized(c, "Invalid or expired access token")
		return
	}

	server := websocket.Server{
		// Origin is not checked; the access token already authenticates the caller.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			h.serve(conn, claims.UserID, log.WithField("user_id", claims.UserID))
		},
	}
	server.ServeHTTP(c.Writer, c.Request)
}

func (h *HubHandler) serve(conn *websocket.Conn, userID uint64, log logrus.FieldLogger) {
	client := hub.NewClient(userID, constants.HubClientBufferSize)
	h.registry.Register(client)
	log.Info("Notification hub connected")

	defer func() {
		h.registry.Unregister(client)
		_ = conn.Close()
		log.Info("Notification hub disconnected")
	}()

	// Client frames carry nothing we act on; reading only detects the close.
	go func() {
		defer h.registry.Unregister(client)
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-client.Done():
			return
		case frame := <-client.Send():
			if err := conn.SetWriteDeadline(time.Now().Add(constants.HubWriteTimeout)); err != nil {
				log.WithError(err).Warn("Failed to set write deadline")
				return
			}
			if err := websocket.JSON.Send(conn, frame); err != nil {
				log.WithError(err).Warn("Failed to push notification frame")
				return
			}
		}
	}
}
