package handler

import (
	"context"
	"errors"
	"net/http"

	"rallymatch/backend/internal/common"

	"github.com/gin-gonic/gin"
)

// writeError maps a core error to a status code. Only the sentinel's meaning
// reaches the client.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrNoIdentity):
		status, msg = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrEmptyMessage):
		status, msg = http.StatusBadRequest, "message is empty"
	case errors.Is(err, common.ErrInvalidArgument):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidSender):
		status, msg = http.StatusForbidden, "not a participant of this chat"
	case errors.Is(err, common.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrAlreadyExists):
		status, msg = http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrStoreUnavailable):
		status, msg = http.StatusServiceUnavailable, "temporarily unavailable, retry"
	case errors.Is(err, context.DeadlineExceeded):
		status, msg = http.StatusGatewayTimeout, "timed out"
	}

	if status >= http.StatusInternalServerError {
		h.Log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
