package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
)

// User-facing degradation messages.
const (
	MessageBackendUnhealthy   = "Backend API is not responding properly. Some features may not work."
	MessageBackendUnreachable = "Cannot connect to the backend server. Please ensure it is running."
)

// HealthState is owned by the health monitor and read-only to subscribers.
// An empty Message is rendered as null.
type HealthState struct {
	Status      HealthStatus `json:"status"`
	Reachable   bool         `json:"reachable"`
	Message     string       `json:"message"`
	LastChecked time.Time    `json:"last_checked"`
}

func (s HealthState) MarshalJSON() ([]byte, error) {
	type wire struct {
		Status      HealthStatus `json:"status"`
		Reachable   bool         `json:"reachable"`
		Message     *string      `json:"message"`
		LastChecked *time.Time   `json:"last_checked"`
	}
	w := wire{Status: s.Status, Reachable: s.Reachable}
	if s.Message != "" {
		msg := s.Message
		w.Message = &msg
	}
	if !s.LastChecked.IsZero() {
		lc := s.LastChecked
		w.LastChecked = &lc
	}
	return json.Marshal(w)
}

// Probe asserts backend reachability once. A nil error means healthy, a
// *ProbeStatusError means the server answered but badly, anything else is a
// transport failure.
type Probe interface {
	Probe(ctx context.Context) error
}

// ProbeStatusError reports a reachable backend that answered with a failure.
type ProbeStatusError struct {
	Target string
	Status string
}

func (e *ProbeStatusError) Error() string {
	return fmt.Sprintf("probe %s: unhealthy status %s", e.Target, e.Status)
}
