// Package handler exposes the matching core over HTTP and WebSocket.
package handler

import (
	"net/http"

	"rallymatch/backend/internal/chathub"
	"rallymatch/backend/internal/identity"
	"rallymatch/backend/internal/logging"
	"rallymatch/backend/internal/matching"
	"rallymatch/backend/internal/messaging"
	"rallymatch/backend/internal/session"
	"rallymatch/backend/internal/storage"
	"rallymatch/backend/internal/swipe"

	"github.com/gin-gonic/gin"
)

// Handler holds everything the routes need.
type Handler struct {
	Hub      *chathub.ManagerService
	Store    storage.Storage
	Feed     *matching.Service
	Swipes   *swipe.Registry
	Sessions *session.Resolver
	Messages *messaging.Coordinator
	Tokens   *identity.JWTIssuer
	Identity identity.Provider
	Log      logging.Logger
}

func NewHandler(h Handler) *Handler {
	if h.Identity == nil {
		h.Identity = identity.ContextProvider{}
	}
	if h.Log == nil {
		h.Log = logging.Nop()
	}
	return &h
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.GET("/healthz", h.Health)
	r.POST("/register", h.Register)

	auth := r.Group("/", h.RequireAuth)
	auth.GET("/profile", h.GetProfile)
	auth.PUT("/profile", h.UpdateProfile)

	auth.GET("/feed", h.GetFeed)
	auth.GET("/feed/current", h.CurrentCandidate)
	auth.POST("/feed/decide", h.Decide)

	auth.POST("/sessions", h.OpenSession)
	auth.GET("/sessions", h.ListSessions)
	auth.GET("/sessions/:id/messages", h.ListMessages)
	auth.POST("/sessions/:id/messages", h.SendMessage)

	auth.GET("/ws", h.ServeWebSocket)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
