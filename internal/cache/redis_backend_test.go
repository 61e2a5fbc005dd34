package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeflow/internal/cache"
	"memeflow/internal/services"
)

const redisPrefix = "memeflow:test:"

func newRedisBackend(t *testing.T) (*cache.RedisBackend, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	backend, err := cache.NewRedisBackend(context.Background(), "redis://"+server.Addr(), redisPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend, server
}

func TestRedisBackendComputesOnce(t *testing.T) {
	backend, server := newRedisBackend(t)
	store := cache.New(backend)
	ctx := context.Background()

	var calls atomic.Int32
	for range 2 {
		got, _, err := cache.GetOrComputeByFingerprint(ctx, store, "business_context", "fp", false, counter(&calls, "redis"))
		require.NoError(t, err)
		assert.Equal(t, "redis", got)
	}
	assert.EqualValues(t, 1, calls.Load())
	assert.True(t, server.Exists(redisPrefix+"entry:business_context"))
	assert.False(t, server.Exists(redisPrefix+"lock:business_context"))
}

func TestRedisLockReleaseKeepsForeignToken(t *testing.T) {
	backend, server := newRedisBackend(t)
	ctx := context.Background()
	lockKey := redisPrefix + "lock:trend_intelligence"

	release, err := backend.Lock(ctx, "trend_intelligence")
	require.NoError(t, err)
	assert.True(t, server.Exists(lockKey))

	// Another process took the lock over after ours expired.
	require.NoError(t, server.Set(lockKey, "other-process"))
	require.NoError(t, release())
	got, err := server.Get(lockKey)
	require.NoError(t, err)
	assert.Equal(t, "other-process", got)

	server.Del(lockKey)
	release, err = backend.Lock(ctx, "trend_intelligence")
	require.NoError(t, err)
	require.NoError(t, release())
	assert.False(t, server.Exists(lockKey))
}

func TestRedisLockWaitsForHolder(t *testing.T) {
	backend, _ := newRedisBackend(t)
	release, err := backend.Lock(context.Background(), "business_context")
	require.NoError(t, err)
	defer func() { _ = release() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = backend.Lock(ctx, "business_context")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisClearRemovesOnlyPrefixedEntries(t *testing.T) {
	backend, server := newRedisBackend(t)
	store := cache.New(backend)
	ctx := context.Background()
	require.NoError(t, server.Set("unrelated:key", "keep"))

	var calls atomic.Int32
	for _, key := range []string{"a", "b", "c"} {
		_, _, err := cache.GetOrComputeByFingerprint(ctx, store, key, "fp", false, counter(&calls, key))
		require.NoError(t, err)
	}

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	removed, err := store.Delete(ctx, "b")
	require.NoError(t, err)
	assert.True(t, removed)

	n, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, server.Exists("unrelated:key"))

	entries, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRedisUnreachableIsTransient(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	addr := server.Addr()
	server.Close()

	_, err = cache.NewRedisBackend(context.Background(), "redis://"+addr, redisPrefix)
	require.Error(t, err)
	assert.Equal(t, services.KindTransient, services.KindOf(err))
}
