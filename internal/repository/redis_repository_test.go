package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	server, client := newRedis(t)
	repo := NewCacheRepository(client)
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "transparency:summary", &out), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "transparency:summary", map[string]int{"approved_count": 3}, time.Minute))
	require.NoError(t, repo.Get(ctx, "transparency:summary", &out))
	assert.Equal(t, 3, out["approved_count"])

	server.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "transparency:summary", &out), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "k", 1, time.Minute))
	assert.True(t, server.Exists("redtape:cache:k"))
	require.NoError(t, repo.Delete(ctx, "k"))
	assert.False(t, server.Exists("redtape:cache:k"))

	require.NoError(t, server.Set("redtape:cache:stale", "not json"))
	assert.ErrorIs(t, repo.Get(ctx, "stale", &out), appErrors.ErrCacheMiss)
	assert.False(t, server.Exists("redtape:cache:stale"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil)
	var out int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
}

func TestRateLimitRepositoryFixedWindow(t *testing.T) {
	server, client := newRedis(t)
	repo := NewRateLimitRepository(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, ttl, err := repo.Hit(ctx, "rl:ip:1.2.3.4", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Equal(t, time.Hour, ttl)
	}

	server.FastForward(time.Hour + time.Second)
	count, _, err := repo.Hit(ctx, "rl:ip:1.2.3.4", time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRateLimitRepositoryRedisDown(t *testing.T) {
	server, client := newRedis(t)
	server.Close()

	_, _, err := NewRateLimitRepository(client).Hit(context.Background(), "rl:x", time.Minute)
	assert.Error(t, err)

	_, _, err = NewRateLimitRepository(nil).Hit(context.Background(), "rl:x", time.Minute)
	assert.Error(t, err)
}
