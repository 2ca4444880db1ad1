package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	c := NewCart("s1", time.Now().UTC())
	c.Add("2", 2, 499)
	c.Version = 7
	require.NoError(t, cache.Set(ctx, "s1", c, 0))

	ttl := mr.TTL(cacheKey("s1"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)

	got, err := cache.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, int64(7), got.Version)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(499), got.Items[0].PriceAtTime)
}

func TestRedisCache_Miss(t *testing.T) {
	cache, _ := setupTestRedis(t)
	got, err := cache.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, got)
}

func TestRedisCache_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(cacheKey("bad"), "{not json"))

	_, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_InvalidateBumpsGeneration(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "s1", NewCart("s1", time.Now()), 0))

	require.NoError(t, cache.Invalidate(ctx, "s1"))
	assert.False(t, mr.Exists(cacheKey("s1")))

	gen, err := cache.Generation(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestRedisCache_SetSkipsAfterInvalidate(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	gen, err := cache.Generation(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "s1"))

	stale := NewCart("s1", time.Now())
	stale.Add("2", 1, 499)
	require.NoError(t, cache.Set(ctx, "s1", stale, gen))
	assert.False(t, mr.Exists(cacheKey("s1")))

	current, err := cache.Generation(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "s1", NewCart("s1", time.Now()), current))
	assert.True(t, mr.Exists(cacheKey("s1")))
}
