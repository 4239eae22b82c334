package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

var (
	ErrEmptyToken = errors.New("session: token must not be empty")
)

// SessionService is the single owner of the persisted session. The HTTP client
// reads it on every request and clears it on invalidation; the UI writes it
// after a successful login or registration.
type SessionService struct {
	backend domain.KeyValueBackend
	logger  zerolog.Logger
}

var _ domain.SessionStore = (*SessionService)(nil)

func NewSessionService(backend domain.KeyValueBackend, logger zerolog.Logger) *SessionService {
	return &SessionService{
		backend: backend,
		logger:  logger.With().Str("component", "session").Logger(),
	}
}

// Get returns the persisted session, or nil when the client is anonymous.
// A stored profile without a token is treated as anonymous.
func (s *SessionService) Get(ctx context.Context) (*domain.Session, error) {
	token, ok, err := s.backend.Load(ctx, domain.SessionTokenKey)
	if err != nil {
		return nil, fmt.Errorf("session: load token: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	user, _, err := s.backend.Load(ctx, domain.SessionUserKey)
	if err != nil {
		return nil, fmt.Errorf("session: load user: %w", err)
	}

	sess := &domain.Session{Token: token}
	if user != "" {
		sess.User = []byte(user)
	}
	return sess, nil
}

// Set persists both keys in one backend write.
func (s *SessionService) Set(ctx context.Context, sess domain.Session) error {
	if sess.Token == "" {
		return ErrEmptyToken
	}

	err := s.backend.Store(ctx, map[string]string{
		domain.SessionTokenKey: sess.Token,
		domain.SessionUserKey:  string(sess.User),
	})
	if err != nil {
		return fmt.Errorf("session: store: %w", err)
	}

	s.logger.Debug().Bool("token_present", true).Msg("session persisted")
	return nil
}

// Clear removes both keys. Clearing an empty store is not an error, so
// concurrent invalidations and an explicit logout can race freely.
func (s *SessionService) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, domain.SessionTokenKey, domain.SessionUserKey); err != nil {
		return fmt.Errorf("session: clear: %w", err)
	}
	s.logger.Debug().Msg("session cleared")
	return nil
}
