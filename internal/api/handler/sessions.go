package handler

import (
	"net/http"
	"strconv"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/messaging"
	"rallymatch/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type openSessionRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

// OpenSession returns the caller's session with a peer, creating it on first use.
func (h *Handler) OpenSession(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.Store.GetProfile(ctx, req.PeerID); err != nil {
		h.writeError(c, err)
		return
	}
	cs, err := h.Sessions.Resolve(ctx, uid, req.PeerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cs)
}

func (h *Handler) ListSessions(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	chats, err := h.Sessions.ListForUser(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": chats})
}

// participantSession loads the :id session and checks the caller is in it.
func (h *Handler) participantSession(c *gin.Context, uid, sessionID string) (*models.ChatSession, bool) {
	cs, err := h.Store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		h.writeError(c, err)
		return nil, false
	}
	if !cs.HasParticipant(uid) {
		h.writeError(c, common.ErrInvalidSender)
		return nil, false
	}
	return cs, true
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	cs, ok := h.participantSession(c, uid, c.Param("id"))
	if !ok {
		return
	}
	after, err := strconv.ParseInt(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil || after < 0 {
		badRequest(c, common.ErrInvalidArgument)
		return
	}
	msgs, err := h.Messages.History(c.Request.Context(), cs.ID, after)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	var req models.OutgoingText
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	msg, err := h.Messages.Append(c.Request.Context(), messaging.AppendInput{
		SessionID:   c.Param("id"),
		SenderID:    uid,
		Text:        req.Text,
		ClientToken: req.ClientToken,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
