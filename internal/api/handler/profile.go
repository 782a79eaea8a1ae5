package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetProfile(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	p, err := h.Store.GetProfile(c.Request.Context(), uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProfile replaces the caller's own profile fields.
func (h *Handler) UpdateProfile(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	current, err := h.Store.GetProfile(ctx, uid)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := req.profile(uid)
	if err != nil {
		h.writeError(c, err)
		return
	}
	p.CreatedAt = current.CreatedAt
	if err := h.Store.SaveProfile(ctx, p); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
