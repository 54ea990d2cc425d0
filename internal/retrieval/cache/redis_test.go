package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type cachedPage struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis[cachedPage], *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := NewRedis[cachedPage](rdb, "retrieval:scrape", ttl, nil)
	require.NoError(t, err)
	return store, mr
}

func TestRedisRoundTrip(t *testing.T) {
	t.Parallel()

	store, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	page := cachedPage{URL: "https://ethz.ch/robotics", Content: "body"}
	require.NoError(t, store.Set(ctx, "https://ethz.ch/robotics", page))

	got, ok, err := store.Get(ctx, "HTTPS://ethz.ch/robotics")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, page, got)
}

func TestRedisMissAndExpiry(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "key", cachedPage{Content: "body"}))
	mr.FastForward(2 * time.Minute)

	_, ok, err = store.Get(ctx, "key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisUndecodableEntryIsMiss(t *testing.T) {
	t.Parallel()

	store, mr := newRedisStore(t, time.Hour)

	require.NoError(t, mr.Set("retrieval:scrape:key", "not json"))

	_, ok, err := store.Get(context.Background(), "key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNewRedisValidation(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, err := NewRedis[cachedPage](nil, "prefix", time.Hour, nil)
	require.Error(t, err)

	_, err = NewRedis[cachedPage](rdb, "", time.Hour, nil)
	require.Error(t, err)
}
