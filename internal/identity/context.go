package identity

import (
	"context"

	"rallymatch/backend/internal/common"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// Provider supplies the identity of the current user.
type Provider interface {
	Identity(ctx context.Context) (string, error)
}

func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ContextProvider reads the identity the auth middleware stored in the context.
type ContextProvider struct{}

func (ContextProvider) Identity(ctx context.Context) (string, error) {
	if id, ok := FromContext(ctx); ok {
		return id, nil
	}
	return "", common.ErrNoIdentity
}
