package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Fixed storage keys. Both are written together and cleared together.
const (
	SessionTokenKey = "token"
	SessionUserKey  = "user"
)

// Session is the authenticated identity held by the client between login and
// logout (or server-side invalidation). User is the profile blob exactly as the
// backend returned it.
type Session struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user,omitempty"`
}

// Authenticated reports whether a bearer credential is present.
// The server is the sole authority on validity: there is no local expiry.
func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// Profile decodes the opaque user blob into the backend's user shape.
func (s *Session) Profile() (User, error) {
	var u User
	if s == nil || len(s.User) == 0 {
		return u, errors.New("domain: session carries no user profile")
	}
	if err := json.Unmarshal(s.User, &u); err != nil {
		return u, fmt.Errorf("domain: malformed user profile: %w", err)
	}
	return u, nil
}

// SessionStore is the narrow session-management surface injected into the
// HTTP client and the UI layer. Clear must succeed on an already empty store.
type SessionStore interface {
	// Get returns (nil, nil) when no session is persisted.
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// KeyValueBackend is the durable string storage a SessionStore sits on.
// Implementations must treat deletes of missing keys as success.
type KeyValueBackend interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Store(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}
