package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"cosmic-chat/internal/services"
	"cosmic-chat/internal/transport/httpdto"
	"cosmic-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type Handler struct {
	auth  *services.AuthService
	users *services.UserService
	hub   *Hub
}

func NewHandler(auth *services.AuthService, users *services.UserService, hub *Hub) *Handler {
	return &Handler{auth: auth, users: users, hub: hub}
}

// Connect upgrades the request to a WebSocket connection. Browsers
// cannot set headers on the upgrade request, so the token rides in the
// query string.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	claims, err := h.auth.ParseAccessToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	userID := strings.TrimSpace(claims.UserID)
	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	go client.WriteLoop(ctx)

	h.setOnline(ctx, userID, true)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	}

	h.hub.Unregister(client)
	h.setOnline(context.Background(), userID, false)
}

// setOnline tracks presence on the user row. Presence is advisory, so
// a failed update only logs.
func (h *Handler) setOnline(ctx context.Context, userID string, online bool) {
	if h.users == nil {
		return
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return
	}
	if err := h.users.SetOnline(ctx, id, online); err != nil {
		if log := logger.GetGlobalLogger(); log != nil {
			log.ErrorfCtx(ctx, "presence update failed for %s: %v", userID, err)
		}
	}
}
