package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginchat/ginchat/frontend/internal/db/redis"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func TestSessionRepository_StoreLoadDelete(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := redis.NewSessionRepository(rdb, "alice")
	ctx := context.Background()

	_, ok, err := repo.Load(ctx, "token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Store(ctx, map[string]string{"token": "T1", "user": `{"user_id":1}`}))

	v, ok, err := repo.Load(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "T1", v)
	assert.Equal(t, "T1", mr.HGet("ginchat:session:alice", "token"))

	require.NoError(t, repo.Delete(ctx, "token", "user"))
	assert.False(t, mr.Exists("ginchat:session:alice"))
}

func TestSessionRepository_Delete_Idempotent(t *testing.T) {
	_, rdb := newTestRedis(t)
	repo := redis.NewSessionRepository(rdb, "")
	ctx := context.Background()

	require.NoError(t, repo.Delete(ctx, "token", "user"))
	require.NoError(t, repo.Delete(ctx, "token", "user"))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Delete(ctx, "token", "user")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestSessionRepository_NeverExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := redis.NewSessionRepository(rdb, "bob")
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, map[string]string{"token": "T2"}))
	assert.Zero(t, mr.TTL("ginchat:session:bob"))

	// Only the server decides when a token is no longer valid.
	mr.FastForward(30 * 24 * time.Hour)
	v, ok, err := repo.Load(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "T2", v)
}

func TestSessionRepository_Unavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	repo := redis.NewSessionRepository(rdb, "carol")
	mr.Close()

	_, _, err := repo.Load(context.Background(), "token")
	assert.ErrorIs(t, err, redis.ErrRedisUnavailable)
}
