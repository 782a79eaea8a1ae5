package handler

import (
	"net/http"

	"rallymatch/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWebSocket attaches the caller to ?session_id= and upgrades the connection.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	cs, ok := h.participantSession(c, uid, c.Query("session_id"))
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn(c.Request.Context(), "websocket upgrade failed", "user", uid, "error", err)
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, uid, cs.ID)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
