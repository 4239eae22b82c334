package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event topics.
const (
	TopicSession = "session"
	TopicHealth  = "health"
)

// Event types.
const (
	EventSessionInvalidated = "session.invalidated"
	EventHealthChanged      = "health.changed"
)

type Event struct {
	ID    uuid.UUID `json:"id"`
	Topic string    `json:"topic"`
	Type  string    `json:"type"`
	Time  time.Time `json:"time"`
	Data  any       `json:"data,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(topic, typ string, data any) Event {
	return Event{
		ID:    uuid.New(),
		Topic: topic,
		Type:  typ,
		Time:  time.Now().UTC(),
		Data:  data,
	}
}

// SessionInvalidated is the payload of a session.invalidated event. The UI
// layer decides how to react (typically by routing to its login entry point).
type SessionInvalidated struct {
	Path      string `json:"path"`
	Method    string `json:"method"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

// EventPublisher fans events out to whoever is listening. Publish must not block.
type EventPublisher interface {
	Publish(ctx context.Context, e Event)
}
