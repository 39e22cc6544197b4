package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"brokerdesk/internal/messaging"
	"brokerdesk/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Client is one browser connection. A user can hold several at once, one
// per open tab or device.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans coordinator notifications out to every live connection of the
// addressed user. It is the outbound half only; clients send nothing but
// pings, state changes go through the HTTP API.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the hub's registration loop in a goroutine.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-h.Register:
				h.mutex.Lock()
				conns := h.clients[client.UserID]
				if conns == nil {
					conns = make(map[*Client]struct{})
					h.clients[client.UserID] = conns
				}
				conns[client] = struct{}{}
				h.mutex.Unlock()
				logger.Debug("websocket: client registered for %s", client.UserID)

			case client := <-h.Unregister:
				h.mutex.Lock()
				if conns, ok := h.clients[client.UserID]; ok {
					if _, live := conns[client]; live {
						delete(conns, client)
						close(client.Send)
					}
					if len(conns) == 0 {
						delete(h.clients, client.UserID)
					}
				}
				h.mutex.Unlock()
				logger.Debug("websocket: client unregistered for %s", client.UserID)

			case <-ctx.Done():
				return
			}
		}
	}()
}

// Notify pushes one coordinator notification to every connection userID
// holds. Slow connections are dropped rather than allowed to back the hub up.
func (h *Hub) Notify(userID string, n messaging.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		logger.Error("websocket: failed to encode notification: %v", err)
		return
	}
	h.SendToUser(userID, payload)
}

// SendToUser delivers a raw payload to every connection of one user.
func (h *Hub) SendToUser(userID string, message []byte) {
	h.mutex.RLock()
	conns := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		conns = append(conns, client)
	}
	h.mutex.RUnlock()

	for _, client := range conns {
		select {
		case client.Send <- message:
		default:
			h.Unregister <- client
		}
	}
}

// ConnectionCount reports how many live connections a user holds.
func (h *Hub) ConnectionCount(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[userID])
}

// ReadPump drains the connection until it closes. Inbound frames carry no
// commands; reading is what surfaces disconnects and feeds the pong handler.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("websocket: read error for %s: %v", c.UserID, err)
			}
			return
		}
	}
}

// WritePump serializes all writes to the connection and keeps it alive with
// periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("websocket: write error for %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
