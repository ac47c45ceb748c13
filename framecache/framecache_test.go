package framecache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutGet(t *testing.T) {
	cache := NewMemory(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "sess-1", []byte("png-1")))

	got, err := cache.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-1"), got)

	_, err = cache.Get(ctx, "sess-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryOverwrite(t *testing.T) {
	cache := NewMemory(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "sess-1", []byte("old")))
	require.NoError(t, cache.Put(ctx, "sess-1", []byte("new")))

	got, err := cache.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestMemoryExpiry(t *testing.T) {
	cache := NewMemory(time.Minute)
	ctx := context.Background()

	now := time.Now()
	cache.now = func() time.Time { return now }
	require.NoError(t, cache.Put(ctx, "sess-1", []byte("png")))

	cache.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := cache.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCopiesPayload(t *testing.T) {
	cache := NewMemory(time.Minute)
	ctx := context.Background()

	original := []byte("png")
	require.NoError(t, cache.Put(ctx, "sess-1", original))
	original[0] = 'x'

	got, err := cache.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), got)
}

func TestMemoryDelete(t *testing.T) {
	cache := NewMemory(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "sess-1", []byte("png")))
	cache.Delete("sess-1")

	_, err := cache.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newRedisCache(t *testing.T, opts ...RedisOption) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, opts...), server
}

func TestRedisPutGet(t *testing.T) {
	cache, _ := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "sess-1", []byte("png-bytes")))

	got, err := cache.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), got)
}

func TestRedisMissingKey(t *testing.T) {
	cache, _ := newRedisCache(t)

	_, err := cache.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTTLApplied(t *testing.T) {
	cache, server := newRedisCache(t, WithTTL(30*time.Second))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "sess-1", []byte("png")))

	server.FastForward(time.Minute)
	_, err := cache.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisKeyPrefix(t *testing.T) {
	cache, server := newRedisCache(t, WithPrefix("custom"))
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, "sess-1", []byte("png")))
	assert.True(t, server.Exists("custom:frame:sess-1"))
}
