package trends

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"collegecontent/internal/core"
	"collegecontent/internal/logger"
)

// Store is the key/value surface the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// RedisStore keeps trend context in Redis.
type RedisStore struct {
	rdb *redis.Client
}

// OpenRedis connects to the Redis server at rawURL (redis://...) and pings
// it.
func OpenRedis(ctx context.Context, rawURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, core.Wrap(core.KindInvalidArgument, "trends.OpenRedis", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := redis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, core.Wrap(core.KindDataUnavailable, "trends.OpenRedis", err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Close() error { return r.rdb.Close() }

// Cached serves repeated queries from a Store. Store failures are logged
// and fall through to the wrapped provider.
type Cached struct {
	next  Provider
	store Store
	ttl   time.Duration
}

// NewCached wraps next with a cache.
func NewCached(next Provider, store Store, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{next: next, store: store, ttl: ttl}
}

func (c *Cached) Name() string { return c.next.Name() + "+cache" }

// Context implements Provider.
func (c *Cached) Context(ctx context.Context, query string) (string, error) {
	key := CacheKey(c.next.Name(), query)
	if v, ok, err := c.store.Get(ctx, key); err != nil {
		logger.Warn("Trend cache read failed", "key", key, "error", err.Error())
	} else if ok {
		logger.Debug("Trend cache hit", "key", key)
		return v, nil
	}

	text, err := c.next.Context(ctx, query)
	if err != nil {
		return "", err
	}
	// Empty context is not cached so a transient empty page is retried.
	if text != "" {
		if err := c.store.Set(ctx, key, text, c.ttl); err != nil {
			logger.Warn("Trend cache write failed", "key", key, "error", err.Error())
		}
	}
	return text, nil
}

// Close closes the store and the wrapped provider.
func (c *Cached) Close() error {
	return errors.Join(c.store.Close(), Close(c.next))
}

// CacheKey is "trends:<sha1>" over the provider name and the normalized
// query.
func CacheKey(provider, query string) string {
	sum := sha1.Sum([]byte(provider + "\x00" + strings.ToLower(strings.Join(strings.Fields(query), " "))))
	return "trends:" + hex.EncodeToString(sum[:])
}
