package handler

import (
	"fmt"
	"net/http"
	"strings"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/identity"
	"rallymatch/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
)

type registerRequest struct {
	Name           string   `json:"name" binding:"required"`
	Age            int      `json:"age" binding:"gte=0,lte=120"`
	Gender         string   `json:"gender"`
	Level          string   `json:"level" binding:"required"`
	AcceptedLevels []string `json:"accepted_levels"`
	AvailableDays  []string `json:"available_days"`
	AvatarURL      *string  `json:"avatar_url"`
	TelegramChatID int64    `json:"telegram_chat_id"`
	Language       string   `json:"language"`
}

func (r *registerRequest) profile(id string) (*models.Profile, error) {
	if !models.SkillLevel(r.Level).Valid() {
		return nil, fmt.Errorf("%w: unknown level %q", common.ErrInvalidArgument, r.Level)
	}
	for _, l := range r.AcceptedLevels {
		if !models.SkillLevel(strings.TrimSpace(l)).Valid() {
			return nil, fmt.Errorf("%w: unknown level %q", common.ErrInvalidArgument, l)
		}
	}
	p := &models.Profile{
		ID:             id,
		Name:           r.Name,
		Age:            r.Age,
		Gender:         r.Gender,
		Level:          models.SkillLevel(r.Level),
		AcceptedLevels: pq.StringArray(r.AcceptedLevels),
		AvailableDays:  pq.StringArray(r.AvailableDays),
		AvatarURL:      r.AvatarURL,
		TelegramChatID: r.TelegramChatID,
		Language:       r.Language,
	}
	p.Normalize()
	if p.Name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrInvalidArgument)
	}
	return p, nil
}

// Register creates a profile under a fresh identity and returns its token.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := req.profile("")
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.Store.CreateProfile(c.Request.Context(), p); err != nil {
		h.writeError(c, err)
		return
	}

	token, err := h.Tokens.Issue(p.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.Log.Info(c.Request.Context(), "profile registered", "user", p.ID, "level", string(p.Level))
	c.JSON(http.StatusCreated, gin.H{"token": token, "profile": p})
}

// RequireAuth accepts "Authorization: Bearer <jwt>", or a token query
// parameter for WebSocket clients that cannot set headers.
func (h *Handler) RequireAuth(c *gin.Context) {
	token := c.Query("token")
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
			h.writeError(c, common.ErrUnauthorized)
			return
		}
		token = authHeader[7:]
	}
	if token == "" {
		h.writeError(c, common.ErrNoIdentity)
		return
	}

	userID, err := h.Tokens.Verify(token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Request = c.Request.WithContext(identity.WithIdentity(c.Request.Context(), userID))
	c.Next()
}

// userID reads the identity the middleware stored; it writes the error itself.
func (h *Handler) userID(c *gin.Context) (string, bool) {
	id, err := h.Identity.Identity(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return "", false
	}
	return id, true
}
