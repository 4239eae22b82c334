package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the claim set the chat backend signs into its access tokens.
type TokenClaims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Expiry returns the advertised expiry, or the zero time if none is set.
func (c *TokenClaims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// InspectToken decodes the claims of a bearer token WITHOUT verifying its
// signature. The result is for display only; the client never rejects or
// expires a session on its own, the server stays the sole authority.
func InspectToken(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, fmt.Errorf("session: undecodable token: %w", err)
	}
	return claims, nil
}
