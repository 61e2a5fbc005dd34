package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"memeflow/internal/services"
)

const (
	redisEntryPart = "entry:"
	redisLockPart  = "lock:"
	redisLockTTL   = 5 * time.Minute
	redisScanBatch = 100
)

// releaseLock deletes the lock only when it still carries our token, so an
// expired lock re-acquired by another process is never released by us.
var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisBackend stores entries as JSON strings under a key prefix so several
// hosts can share one cache.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to redisURL and verifies the connection.
func NewRedisBackend(ctx context.Context, redisURL, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "cache", "open", "invalid redis url", err)
	}
	client := redis.NewClient(opts)
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, services.Transient(services.ReasonUnavailable, "cache", "open", "redis unreachable", err)
	}
	return NewRedisBackendFromClient(client, prefix), nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(client *redis.Client, prefix string) *RedisBackend {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "memeflow:cache:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) entryKey(key string) string { return b.prefix + redisEntryPart + key }

func (b *RedisBackend) lockKey(key string) string { return b.prefix + redisLockPart + key }

func (b *RedisBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.client.Get(ctx, b.entryKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, unavailable("load", err)
	}
	return data, true, nil
}

func (b *RedisBackend) Store(ctx context.Context, key string, data []byte) error {
	if err := b.client.Set(ctx, b.entryKey(key), data, 0).Err(); err != nil {
		return unavailable("store", err)
	}
	return nil
}

func (b *RedisBackend) Lock(ctx context.Context, key string) (func() error, error) {
	lockKey := b.lockKey(key)
	token := uuid.NewString()
	ticker := time.NewTicker(lockRetryWait)
	defer ticker.Stop()
	for {
		ok, err := b.client.SetNX(ctx, lockKey, token, redisLockTTL).Result()
		if err != nil {
			return nil, unavailable("lock", err)
		}
		if ok {
			return func() error {
				// The caller's context may already be done; release regardless.
				return releaseLock.Run(context.WithoutCancel(ctx), b.client, []string{lockKey}, token).Err()
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire cache lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (b *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, b.entryKey(key)).Result()
	if err != nil {
		return false, unavailable("delete", err)
	}
	return n > 0, nil
}

func (b *RedisBackend) List(ctx context.Context) ([]Record, error) {
	keys, err := b.scanEntries(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(keys))
	for _, key := range keys {
		data, err := b.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, unavailable("list", err)
		}
		records = append(records, Record{ID: key, Data: data})
	}
	return records, nil
}

func (b *RedisBackend) Clear(ctx context.Context) (int, error) {
	keys, err := b.scanEntries(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := b.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable("clear", err)
	}
	return int(n), nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

func (b *RedisBackend) scanEntries(ctx context.Context) ([]string, error) {
	var keys []string
	iter := b.client.Scan(ctx, 0, b.prefix+redisEntryPart+"*", redisScanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, unavailable("scan", err)
	}
	return keys, nil
}

func unavailable(op string, err error) error {
	return services.Transient(services.ReasonUnavailable, "cache", op, "redis unavailable", err)
}
