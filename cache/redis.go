package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces guard keys inside a shared Redis database.
const DefaultRedisPrefix = "goguard:"

// INCR and the first PEXPIRE must happen together, otherwise a crash between
// them leaves a counter that never expires. The PTTL check also repairs a
// counter that somehow lost its expiry.
const incrementScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) == -1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`

var incrementLua = redis.NewScript(incrementScript)

// RedisBackend stores entries in Redis.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ Backend           = (*RedisBackend)(nil)
	_ AtomicIncrementer = (*RedisBackend)(nil)
)

// NewRedisBackend uses client for all operations. Close closes client.
func NewRedisBackend(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Name() string { return string(ModeRedis) }

func (b *RedisBackend) key(k string) string {
	return b.prefix + k
}

// Ping checks that the server answers.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	k := b.key(key)

	pipe := b.client.Pipeline()
	get := pipe.Get(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Entry{}, false, err
	}

	value, err := get.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}

	ttl := pttl.Val()
	if ttl < 0 {
		ttl = 0
	}
	return Entry{Value: value, TTL: ttl}, true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, b.key(key), value, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.key(key)).Err()
}

func (b *RedisBackend) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return incrementLua.Run(ctx, b.client, []string{b.key(key)}, ms).Int64()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
