package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache holds read-through copies of carts. Every invalidation bumps a
// per-session generation, and Set only stores a cart when the generation is
// still the one read before the cart was loaded from the repository.
type Cache interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	Generation(ctx context.Context, sessionID string) (int64, error)
	Set(ctx context.Context, sessionID string, c *Cart, generation int64) error
	Invalidate(ctx context.Context, sessionID string) error
}

// NoopCache always misses. It is used when no redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Cart, error) { return nil, ErrCacheMiss }

func (NoopCache) Generation(context.Context, string) (int64, error) { return 0, nil }

func (NoopCache) Set(context.Context, string, *Cart, int64) error { return nil }

func (NoopCache) Invalidate(context.Context, string) error { return nil }

// setIfGeneration writes KEYS[1] only while KEYS[2] still equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

type RedisCache struct {
	client        *redis.Client
	baseTTL       time.Duration
	generationTTL time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:        client,
		baseTTL:       15 * time.Minute,
		generationTTL: 24 * time.Hour,
	}
}

type cachedCart struct {
	Cart
	Version int64 `json:"version"`
}

func (r *RedisCache) Get(ctx context.Context, sessionID string) (*Cart, error) {
	data, err := r.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cc cachedCart
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	c := cc.Cart
	c.Version = cc.Version
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return &c, nil
}

func (r *RedisCache) Generation(ctx context.Context, sessionID string) (int64, error) {
	gen, err := r.client.Get(ctx, generationKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

// Set is a no-op when the cart was invalidated after generation was read.
func (r *RedisCache) Set(ctx context.Context, sessionID string, c *Cart, generation int64) error {
	data, err := json.Marshal(cachedCart{Cart: *c, Version: c.Version})
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	err = setIfGeneration.Run(ctx, r.client,
		[]string{cacheKey(sessionID), generationKey(sessionID)},
		strconv.FormatInt(generation, 10), data, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Invalidate(ctx context.Context, sessionID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(sessionID))
		pipe.Incr(ctx, generationKey(sessionID))
		pipe.Expire(ctx, generationKey(sessionID), r.generationTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

// Both keys share a hash tag so the script and transaction stay on one slot.
func cacheKey(sessionID string) string {
	return fmt.Sprintf("cart:{%s}", sessionID)
}

func generationKey(sessionID string) string {
	return fmt.Sprintf("cart:{%s}:gen", sessionID)
}
