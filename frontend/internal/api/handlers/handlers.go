package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

// HealthReader is the slice of the health monitor the bridge exposes.
type HealthReader interface {
	State() domain.HealthState
	Dismiss() domain.HealthState
}

// Authenticator performs the credential exchange against the chat backend.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Logout(ctx context.Context) error
}

// EventSource hands out per-topic event subscriptions.
type EventSource interface {
	Subscribe(topic string) (<-chan domain.Event, func())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
