package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"brokerdesk/internal/adapter/api/middleware"
	ws "brokerdesk/internal/infrastructure/websocket"
	"brokerdesk/internal/messaging"
	"brokerdesk/pkg/errors"
)

type WebSocketHandler struct {
	hub            *ws.Hub
	registry       *messaging.Registry
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // TODO: restrict to the SaaS origins before exposing publicly
	},
}

func NewWebSocketHandler(hub *ws.Hub, registry *messaging.Registry, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		registry:       registry,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket upgrades the connection and attaches it to the caller's
// notification stream. Auth rides the token query parameter since browsers
// cannot set headers on an upgrade request.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication token required", nil)
	}

	userID, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	// Connecting to the socket is what brings a user's coordinator online.
	h.registry.Get(userID)

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
	h.hub.Register <- client

	go client.ReadPump(h.hub)
	go client.WritePump()

	return nil
}
