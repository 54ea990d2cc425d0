package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 24 * time.Hour

// Redis is an optional second cache level shared across processes. Values
// are stored as JSON with a TTL so long-running deployments do not grow
// without bound.
type Redis[V any] struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	keyFn  KeyFunc
}

// NewRedis constructs a Redis store. prefix namespaces the keys (e.g.
// "retrieval:search"). A non-positive ttl falls back to 24h.
func NewRedis[V any](rdb redis.UniversalClient, prefix string, ttl time.Duration, keyFn KeyFunc) (*Redis[V], error) {
	if rdb == nil {
		return nil, errors.New("redis client is required")
	}
	if prefix == "" {
		return nil, errors.New("key prefix is required")
	}
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	if keyFn == nil {
		keyFn = TrimLower
	}
	return &Redis[V]{rdb: rdb, prefix: prefix, ttl: ttl, keyFn: keyFn}, nil
}

func (r *Redis[V]) redisKey(key string) string {
	return r.prefix + ":" + r.keyFn(key)
}

// Get fetches and decodes the cached value.
func (r *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	raw, err := r.rdb.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, false, nil
		}
		return zero, false, errors.Wrap(err, "redis get")
	}

	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		// Treat undecodable entries as a miss so a schema change cannot
		// poison the cache.
		return zero, false, nil
	}
	return value, true, nil
}

// Set encodes and stores the value with the configured TTL.
func (r *Redis[V]) Set(ctx context.Context, key string, value V) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "marshal cache value")
	}
	if err := r.rdb.Set(ctx, r.redisKey(key), raw, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}
