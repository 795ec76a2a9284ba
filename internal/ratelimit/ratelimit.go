package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter enforces a fixed-window cap on call starts per caller fingerprint.
// The counter lives in redis so every instance sees the same window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var allowScript = redis.NewScript(`
-- KEYS[1] = window counter key
-- ARGV[1] = limit (int)
-- ARGV[2] = window_ms (int)
--
-- Returns:
--  1 if allowed
--  0 if rejected (limit reached for this window)
local current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
else
  -- Ensure TTL exists even if key already existed without TTL
  if redis.call('PTTL', KEYS[1]) < 0 then
    redis.call('PEXPIRE', KEYS[1], ARGV[2])
  end
end

if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

// RedisLimiter counts call starts per key within a rolling-expiry window.
//
// Safety properties:
// - Atomic check-and-count using Lua.
// - TTL prevents stale windows surviving a process crash.
type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	if l.rdb == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return false, fmt.Errorf("key is required")
	}

	res, err := allowScript.Run(ctx, l.rdb, []string{l.prefix + key}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// NoopLimiter allows everything. Used when no cap is configured and in tests.
type NoopLimiter struct{}

func (NoopLimiter) Allow(ctx context.Context, key string) (bool, error) { return true, nil }

// MemoryLimiter is a single-process fixed-window limiter for tests.
type MemoryLimiter struct {
	Limit  int
	counts map[string]int
}

func NewMemoryLimiter(limit int) *MemoryLimiter {
	return &MemoryLimiter{Limit: limit, counts: map[string]int{}}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (bool, error) {
	l.counts[key]++
	return l.counts[key] <= l.Limit, nil
}
