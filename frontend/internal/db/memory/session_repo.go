package memory

import (
	"context"
	"sync"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

// SessionRepository keeps session keys in process memory.
type SessionRepository struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ domain.KeyValueBackend = (*SessionRepository)(nil)

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{values: make(map[string]string)}
}

func (r *SessionRepository) Load(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *SessionRepository) Store(_ context.Context, values map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range values {
		r.values[k] = v
	}
	return nil
}

func (r *SessionRepository) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}
