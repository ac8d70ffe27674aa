package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisIdempotencyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisIdempotencyStoreWithClient(client, "test:")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisIdempotencyStore_Claim(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	claimed, value, err := store.Claim(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, value)
	assert.True(t, mr.Exists("test:k1"))

	claimed, value, err = store.Claim(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Empty(t, value, "pending marker must not leak to callers")
}

func TestRedisIdempotencyStore_CompleteAndRelease(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	_, _, err := store.Claim(ctx, "k2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Complete(ctx, "k2", "result", time.Hour))

	claimed, value, err := store.Claim(ctx, "k2", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "result", value)
	assert.Equal(t, time.Hour, mr.TTL("test:k2"))

	require.NoError(t, store.Release(ctx, "k2"))
	assert.False(t, mr.Exists("test:k2"))

	claimed, _, err = store.Claim(ctx, "k2", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisIdempotencyStore_ClaimExpires(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	_, _, err := store.Claim(ctx, "k3", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	claimed, _, err := store.Claim(ctx, "k3", time.Second)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisIdempotencyStore_Unavailable(t *testing.T) {
	store, mr := newMiniredisStore(t)
	mr.Close()

	_, _, err := store.Claim(context.Background(), "k4", time.Second)
	assert.Error(t, err)
}

func TestNewIdempotencyStore_EmptyHostUsesMemory(t *testing.T) {
	store, err := NewIdempotencyStore(configWithHost(""))
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*InMemoryIdempotencyStore)
	assert.True(t, ok)
}

func TestNewIdempotencyStore_UsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := configWithHost(mr.Host())
	cfg.Port = portOf(t, mr)

	store, err := NewIdempotencyStore(cfg)
	require.NoError(t, err)
	defer store.Close()

	_, ok := store.(*RedisIdempotencyStore)
	assert.True(t, ok)
}

func TestNewIdempotencyStore_RequireRedis(t *testing.T) {
	cfg := configWithHost("127.0.0.1")
	cfg.Port = 1

	_, err := NewIdempotencyStore(cfg, RequireRedis())
	assert.Error(t, err)
}

func configWithHost(host string) config.RedisConfig {
	return config.RedisConfig{Host: host, Port: 6379}
}

func portOf(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}

func TestRedisIdempotencyStore_Ping(t *testing.T) {
	store, mr := newMiniredisStore(t)

	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
