package handler

import (
	"net/http"
	"strconv"

	"rallymatch/backend/internal/models"
	"rallymatch/backend/internal/swipe"

	"github.com/gin-gonic/gin"
)

// GetFeed ranks the caller's candidates and restarts their swipe cursor.
func (h *Handler) GetFeed(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	ranked, err := h.Feed.Feed(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	ctrl := h.Swipes.Get(uid)
	ctrl.Refresh(ranked)
	c.JSON(http.StatusOK, gin.H{"candidates": ranked, "remaining": ctrl.Remaining()})
}

func (h *Handler) CurrentCandidate(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	ctrl := h.Swipes.Get(uid)
	cur, ok := ctrl.Current()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"exhausted": true, "remaining": 0})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exhausted": false, "remaining": ctrl.Remaining(), "candidate": cur})
}

type decideRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type decideResponse struct {
	Advanced  bool                    `json:"advanced"`
	Candidate *models.RankedCandidate `json:"candidate,omitempty"`
	Next      *models.RankedCandidate `json:"next,omitempty"`
	Remaining int                     `json:"remaining"`
	// Resolution is the session state for accepts.
	Resolution string              `json:"resolution,omitempty"`
	Session    *models.ChatSession `json:"session,omitempty"`
}

// Decide swipes on the current candidate. With ?wait=true an accept answers
// only once its session is open.
func (h *Handler) Decide(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	dir, err := swipe.ParseDirection(req.Direction)
	if err != nil {
		h.writeError(c, err)
		return
	}
	wait, _ := strconv.ParseBool(c.DefaultQuery("wait", "false"))

	ctx := c.Request.Context()
	ctrl := h.Swipes.Get(uid)
	d := ctrl.Decide(ctx, dir)

	resp := decideResponse{Advanced: d.Advanced, Remaining: ctrl.Remaining()}
	if d.Advanced {
		resp.Candidate = &d.Candidate
	}
	if next, ok := ctrl.Current(); ok {
		resp.Next = &next
	}
	if d.Resolution != nil {
		if wait {
			if _, err := d.Resolution.Wait(ctx); err != nil {
				h.writeError(c, err)
				return
			}
		}
		resp.Resolution = d.Resolution.State().String()
		resp.Session = d.Resolution.Session()
	}
	c.JSON(http.StatusOK, resp)
}
