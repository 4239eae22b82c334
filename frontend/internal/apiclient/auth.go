package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User  json.RawMessage `json:"user"`
	Token string          `json:"token"`
}

// Login exchanges credentials for a session. The session is returned, not
// persisted; the caller decides where it lives.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	return c.authenticate(ctx, "/auth/login", loginRequest{Email: email, Password: password})
}

// Register creates an account and returns its first session, unpersisted.
func (c *Client) Register(ctx context.Context, username, email, password string) (*domain.Session, error) {
	return c.authenticate(ctx, "/auth/register", registerRequest{Username: username, Email: email, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*domain.Session, error) {
	var out authResponse
	if err := c.call(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, fmt.Errorf("%w: POST %s: no token in response", ErrDecode, path)
	}
	return &domain.Session{Token: out.Token, User: out.User}, nil
}

// Logout tells the server to end the session. It does not clear local state.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, &Request{Method: http.MethodPost, Path: "/auth/logout"}, nil)
}
