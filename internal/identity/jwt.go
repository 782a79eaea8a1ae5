// Package identity issues and checks the tokens that carry a user's stable
// identity, and moves that identity through request contexts.
package identity

import (
	"errors"
	"fmt"
	"time"

	"rallymatch/backend/internal/common"
	"rallymatch/backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the standard claims plus the user identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// JWTIssuer signs and verifies HS256 tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewJWTIssuer(secret string, ttl time.Duration) *JWTIssuer {
	if ttl <= 0 {
		ttl = config.TokenTTL
	}
	return &JWTIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: config.TokenIssuer,
		now:    time.Now,
	}
}

func (j *JWTIssuer) Issue(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("issue token: %w: empty identity", common.ErrInvalidArgument)
	}
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		UserID: userID,
	})
	return token.SignedString(j.secret)
}

// Verify returns the identity in a valid token. Every failure wraps
// common.ErrUnauthorized.
func (j *JWTIssuer) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: token expired", common.ErrUnauthorized)
		}
		return "", fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", fmt.Errorf("%w: invalid token", common.ErrUnauthorized)
	}
	return claims.UserID, nil
}
