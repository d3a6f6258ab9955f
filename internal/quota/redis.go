package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStoreTimeout = 500 * time.Millisecond

// consumeScript is the single atomic read-modify-write against bucket state.
// A bucket is a hash of {tokens, last_refill} (milliseconds). Refill is
// continuous: accrued = floor(elapsed * quantity / interval), capped at
// capacity, and last_refill advances only by the accrual-equivalent time so
// fractional progress is never lost. Missing buckets start full. The key
// expires after the bucket would have refilled completely anyway.
//
// KEYS[1] bucket key
// ARGV: capacity, refill quantity, refill interval ms, cost, now ms, ttl ms
// Returns {allowed, tokens, last_refill}.
const consumeScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local quantity = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local now = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

local state = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = capacity
  last = now
end

local elapsed = now - last
if elapsed > 0 then
  local accrued = math.floor(elapsed * quantity / interval)
  if accrued > 0 then
    tokens = tokens + accrued
    if tokens >= capacity then
      tokens = capacity
      last = now
    else
      last = last + math.floor(accrued * interval / quantity)
    end
  end
end

local allowed = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', last)
redis.call('PEXPIRE', key, ttl)

return {allowed, tokens, last}
`

// RedisStore implements Store against a shared Redis instance. The Lua
// script is the only write path, so concurrent consumers of one bucket are
// serialized by the store, not by in-process locking.
type RedisStore struct {
	client  redis.Scripter
	script  *redis.Script
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the bucket key prefix (default "quota:").
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTimeout bounds each store round trip (default 500ms).
func WithTimeout(timeout time.Duration) RedisOption {
	return func(s *RedisStore) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithRedisClock overrides the time source (useful for tests).
func WithRedisClock(fn func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewRedisStore(client redis.Scripter, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		script:  redis.NewScript(consumeScript),
		prefix:  "quota:",
		timeout: defaultStoreTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TryConsume atomically takes cost tokens from the bucket, creating it with
// the policy's configuration if absent.
func (s *RedisStore) TryConsume(ctx context.Context, key string, policy Policy, cost int64) (Decision, error) {
	if cost <= 0 {
		cost = 1
	}
	// Once the script runs the decrement cannot be rolled back, so a
	// client hanging up mid-check must not cancel the in-flight call.
	ctx = context.WithoutCancel(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nowMs := s.now().UnixMilli()
	intervalMs := policy.RefillInterval.Milliseconds()
	if intervalMs <= 0 {
		intervalMs = 1
	}
	ttlMs := (policy.TimeToFull() + policy.RefillInterval).Milliseconds()

	res, err := s.script.Run(ctx, s.client,
		[]string{s.prefix + key},
		policy.Capacity, policy.RefillQuantity, intervalMs, cost, nowMs, ttlMs,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply", ErrStoreUnavailable)
	}

	allowed := res[0] == 1
	return Decision{
		Allowed:    allowed,
		Remaining:  res[1],
		RetryAfter: retryHint(policy, allowed, res[1], res[2], nowMs, cost),
	}, nil
}

// retryHint derives the Retry-After estimate from post-consume bucket state.
func retryHint(policy Policy, allowed bool, tokens, lastMs, nowMs, cost int64) time.Duration {
	perTokenMs := policy.TokenPeriod().Milliseconds()
	if perTokenMs <= 0 {
		perTokenMs = 1
	}
	if allowed {
		if tokens >= policy.Capacity {
			return 0
		}
		d := time.Duration(lastMs+perTokenMs-nowMs) * time.Millisecond
		if d < 0 {
			d = 0
		}
		return d
	}
	need := cost - tokens
	if need < 1 {
		need = 1
	}
	d := time.Duration(lastMs+need*perTokenMs-nowMs) * time.Millisecond
	if d <= 0 {
		d = time.Millisecond
	}
	return d
}
