package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"rallymatch/backend/internal/config"
	"rallymatch/backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * config.MaxMessageLength
)

// WebSocketClient implements Client over a gorilla/websocket connection.
type WebSocketClient struct {
	UserID    string
	SessionID string
	Conn      *websocket.Conn
	Hub       *ManagerService

	send   chan models.Event
	mu     sync.Mutex
	closed bool
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, userID, sessionID string) *WebSocketClient {
	return &WebSocketClient{
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Hub:       hub,
		send:      make(chan models.Event, config.SubscriptionBuffer),
	}
}

func (c *WebSocketClient) GetUserID() string    { return c.UserID }
func (c *WebSocketClient) GetSessionID() string { return c.SessionID }

func (c *WebSocketClient) Deliver(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Run starts the pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops writePump, which then closes the connection and with it readPump.
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ctx := context.Background()
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.Log.Warn(ctx, "websocket read failed", "user", c.UserID, "error", err)
			}
			return
		}

		var in models.OutgoingText
		if err := json.Unmarshal(raw, &in); err != nil {
			c.Deliver(models.Event{Type: models.EventError, Error: "malformed frame"})
			continue
		}
		_ = c.Hub.HandleIncoming(ctx, c, in)
	}
}

// writePump writes one JSON event per frame and keeps the connection alive
// with pings.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
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
