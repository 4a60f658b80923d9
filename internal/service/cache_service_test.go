package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/internal/repository"
)

func newRedisFixture(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client
}

func TestCacheServiceHitMissAndInvalidate(t *testing.T) {
	_, client := newRedisFixture(t)
	svc := NewCacheService(repository.NewCacheRepository(client), NewMetricsService(), time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out []string
	assert.False(t, svc.Get(ctx, "k", &out))

	svc.Set(ctx, "k", []string{"a"}, 0)
	assert.True(t, svc.Get(ctx, "k", &out))
	assert.Equal(t, []string{"a"}, out)

	svc.Invalidate(ctx, "k")
	assert.False(t, svc.Get(ctx, "k", &out))
}

func TestCacheServiceRedisDownIsMiss(t *testing.T) {
	server, client := newRedisFixture(t)
	svc := NewCacheService(repository.NewCacheRepository(client), nil, time.Minute, nil, true)
	server.Close()

	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
	svc.Set(context.Background(), "k", 1, time.Minute)
	svc.Invalidate(context.Background(), "k")
}

func TestCacheServiceDisabled(t *testing.T) {
	_, client := newRedisFixture(t)
	svc := NewCacheService(repository.NewCacheRepository(client), nil, time.Minute, nil, false)
	svc.Set(context.Background(), "k", 1, time.Minute)

	var out int
	assert.False(t, svc.Get(context.Background(), "k", &out))
	assert.False(t, svc.Enabled())
}
