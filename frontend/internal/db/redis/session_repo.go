package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ginchat/ginchat/frontend/internal/core/domain"
)

// ErrRedisUnavailable wraps connectivity failures so callers can tell them
// apart from a missing session.
var ErrRedisUnavailable = errors.New("redis unavailable")

const keyPrefix = "ginchat:session:"

// SessionRepository keeps a profile's session keys in one Redis hash.
type SessionRepository struct {
	rdb *goredis.Client
	key string
}

var _ domain.KeyValueBackend = (*SessionRepository)(nil)

// NewSessionRepository binds the repository to a profile. The hash carries no
// expiry; it lives until the session is cleared.
func NewSessionRepository(rdb *goredis.Client, profile string) *SessionRepository {
	if profile == "" {
		profile = "default"
	}
	return &SessionRepository{rdb: rdb, key: keyPrefix + profile}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

func (r *SessionRepository) Load(ctx context.Context, field string) (string, bool, error) {
	v, err := r.rdb.HGet(ctx, r.key, field).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return v, true, nil
}

func (r *SessionRepository) Store(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	pairs := make([]any, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, k, v)
	}

	if err := r.rdb.HSet(ctx, r.key, pairs...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete is idempotent: HDEL on absent fields or an absent hash returns 0.
func (r *SessionRepository) Delete(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.rdb.HDel(ctx, r.key, fields...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
