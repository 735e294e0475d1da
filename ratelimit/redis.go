package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Each script receives the caller's clock in milliseconds so that every
// process sharing a key agrees on the arithmetic the in-memory types use.

var expiringCheckScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
if cost > max then return 0 end
local f = redis.call("HMGET", KEYS[1], "count", "reset")
local count = tonumber(f[1])
local reset = tonumber(f[2])
if count == nil or reset == nil or now - reset >= window then return 1 end
if count >= cost then return 1 end
return 0
`)

var expiringConsumeScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
if cost > max then return 0 end
local f = redis.call("HMGET", KEYS[1], "count", "reset")
local count = tonumber(f[1])
local reset = tonumber(f[2])
if count == nil or reset == nil or now - reset >= window then
  redis.call("HSET", KEYS[1], "count", max - cost, "reset", now)
  redis.call("PEXPIRE", KEYS[1], window)
  return 1
end
if count < cost then return 0 end
redis.call("HSET", KEYS[1], "count", count - cost)
return 1
`)

var refillingScript = redis.NewScript(`
local max = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local cost = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local mutate = ARGV[5] == "1"
if cost > max then return 0 end
local f = redis.call("HMGET", KEYS[1], "count", "refilled")
local count = tonumber(f[1])
local refilled = tonumber(f[2])
if count == nil or refilled == nil then
  count = max
  refilled = now
else
  local intervals = math.floor((now - refilled) / interval)
  if intervals > 0 then
    count = math.min(max, count + intervals)
    refilled = refilled + intervals * interval
  end
end
if count < cost then return 0 end
if mutate then
  redis.call("HSET", KEYS[1], "count", count - cost, "refilled", refilled)
  redis.call("PEXPIRE", KEYS[1], max * interval)
end
return 1
`)

var throttleScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local steps = #ARGV - 2
local f = redis.call("HMGET", KEYS[1], "index", "updated")
local index = tonumber(f[1])
local updated = tonumber(f[2])
if index == nil or updated == nil then
  redis.call("HSET", KEYS[1], "index", math.min(1, steps - 1), "updated", now)
  redis.call("PEXPIRE", KEYS[1], ttl)
  return 1
end
if now - updated < tonumber(ARGV[3 + index]) then return 0 end
redis.call("HSET", KEYS[1], "index", math.min(index + 1, steps - 1), "updated", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return 1
`)

func runBool(ctx context.Context, s *redis.Script, rdb redis.Scripter, key string, args ...any) (bool, error) {
	n, err := s.Run(ctx, rdb, []string{key}, args...).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n == 1, nil
}

func del(ctx context.Context, rdb redis.UniversalClient, key string) error {
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RedisExpiringBucket is the shared-state counterpart of ExpiringTokenBucket.
type RedisExpiringBucket struct {
	rdb       redis.UniversalClient
	prefix    string
	max       int64
	expiresIn time.Duration
	now       Clock
}

// NewRedisExpiringBucket stores buckets as hashes under prefix + ":" + key.
func NewRedisExpiringBucket(rdb redis.UniversalClient, prefix string, max int64, expiresIn time.Duration) *RedisExpiringBucket {
	return &RedisExpiringBucket{rdb: rdb, prefix: prefix, max: max, expiresIn: expiresIn, now: time.Now}
}

func (b *RedisExpiringBucket) WithClock(now Clock) *RedisExpiringBucket {
	b.now = now
	return b
}

func (b *RedisExpiringBucket) key(k string) string { return b.prefix + ":" + k }

func (b *RedisExpiringBucket) Check(ctx context.Context, key string, cost int64) (bool, error) {
	return runBool(ctx, expiringCheckScript, b.rdb, b.key(key), b.max, b.expiresIn.Milliseconds(), cost, b.now().UnixMilli())
}

func (b *RedisExpiringBucket) Consume(ctx context.Context, key string, cost int64) (bool, error) {
	return runBool(ctx, expiringConsumeScript, b.rdb, b.key(key), b.max, b.expiresIn.Milliseconds(), cost, b.now().UnixMilli())
}

func (b *RedisExpiringBucket) Reset(ctx context.Context, key string) error {
	return del(ctx, b.rdb, b.key(key))
}

// RedisRefillingBucket is the shared-state counterpart of RefillingTokenBucket.
type RedisRefillingBucket struct {
	rdb            redis.UniversalClient
	prefix         string
	max            int64
	refillInterval time.Duration
	now            Clock
}

func NewRedisRefillingBucket(rdb redis.UniversalClient, prefix string, max int64, refillInterval time.Duration) *RedisRefillingBucket {
	return &RedisRefillingBucket{rdb: rdb, prefix: prefix, max: max, refillInterval: refillInterval, now: time.Now}
}

func (b *RedisRefillingBucket) WithClock(now Clock) *RedisRefillingBucket {
	b.now = now
	return b
}

func (b *RedisRefillingBucket) key(k string) string { return b.prefix + ":" + k }

func (b *RedisRefillingBucket) Check(ctx context.Context, key string, cost int64) (bool, error) {
	return runBool(ctx, refillingScript, b.rdb, b.key(key), b.max, b.refillInterval.Milliseconds(), cost, b.now().UnixMilli(), "0")
}

func (b *RedisRefillingBucket) Consume(ctx context.Context, key string, cost int64) (bool, error) {
	return runBool(ctx, refillingScript, b.rdb, b.key(key), b.max, b.refillInterval.Milliseconds(), cost, b.now().UnixMilli(), "1")
}

func (b *RedisRefillingBucket) Reset(ctx context.Context, key string) error {
	return del(ctx, b.rdb, b.key(key))
}

// RedisThrottler is the shared-state counterpart of Throttler.
type RedisThrottler struct {
	rdb       redis.UniversalClient
	prefix    string
	delays    []int64
	retention time.Duration
	now       Clock
}

// NewRedisThrottler keeps each entry for retention after its last allowed
// attempt. A non-positive retention defaults to the largest delay.
func NewRedisThrottler(rdb redis.UniversalClient, prefix string, delays []time.Duration, retention time.Duration) *RedisThrottler {
	ms := make([]int64, 0, len(delays))
	var longest time.Duration
	for _, d := range delays {
		ms = append(ms, d.Milliseconds())
		longest = max(longest, d)
	}
	if len(ms) == 0 {
		ms = []int64{0}
	}
	if retention <= 0 {
		retention = longest
	}
	if retention < time.Second {
		retention = time.Second
	}
	return &RedisThrottler{rdb: rdb, prefix: prefix, delays: ms, retention: retention, now: time.Now}
}

func (t *RedisThrottler) WithClock(now Clock) *RedisThrottler {
	t.now = now
	return t
}

func (t *RedisThrottler) key(k string) string { return t.prefix + ":" + k }

func (t *RedisThrottler) Consume(ctx context.Context, key string) (bool, error) {
	args := make([]any, 0, len(t.delays)+2)
	args = append(args, t.now().UnixMilli(), t.retention.Milliseconds())
	for _, d := range t.delays {
		args = append(args, d)
	}
	return runBool(ctx, throttleScript, t.rdb, t.key(key), args...)
}

func (t *RedisThrottler) Reset(ctx context.Context, key string) error {
	return del(ctx, t.rdb, t.key(key))
}
