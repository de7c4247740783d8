package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/manual-share/config"
	"go.uber.org/zap"
)

// tokenBucketScript refills and takes one token atomically.
// Returns {allowed, remaining, retry_after_ms}.
const tokenBucketScript = `
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`

// Decision is the outcome of taking a token
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// scriptRunner runs the bucket script against one key
type scriptRunner interface {
	Run(ctx context.Context, keys []string, args ...interface{}) (interface{}, error)
}

type redisScript struct {
	client *redis.Client
	script *redis.Script
}

func (s *redisScript) Run(ctx context.Context, keys []string, args ...interface{}) (interface{}, error) {
	return s.script.Run(ctx, s.client, keys, args...).Result()
}

// TokenBucket is a Redis backed token bucket limiter
type TokenBucket struct {
	runner scriptRunner
	cfg    config.RateLimitConfig
	now    func() time.Time
	logger *zap.Logger
}

// NewTokenBucket creates a limiter over the Redis client
func NewTokenBucket(client *redis.Client, cfg config.RateLimitConfig, logger *zap.Logger) *TokenBucket {
	return newTokenBucket(&redisScript{client: client, script: redis.NewScript(tokenBucketScript)}, cfg, logger)
}

func newTokenBucket(runner scriptRunner, cfg config.RateLimitConfig, logger *zap.Logger) *TokenBucket {
	return &TokenBucket{
		runner: runner,
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Allow takes one token from the bucket identified by the key parts
func (b *TokenBucket) Allow(ctx context.Context, parts ...string) (*Decision, error) {
	key := b.key(parts...)

	vals, err := b.runner.Run(ctx, []string{key},
		b.now().UnixMilli(),
		b.cfg.Capacity,
		b.cfg.Refill,
		b.cfg.Interval.Milliseconds(),
		b.ttlSeconds(),
	)
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}

	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("unexpected rate limit script result: %#v", vals)
	}

	decision := &Decision{
		Allowed:    asInt64(arr[0]) == 1,
		Limit:      b.cfg.Capacity,
		Remaining:  int(asInt64(arr[1])),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}

	if !decision.Allowed {
		b.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Duration("retry_after", decision.RetryAfter))
	}

	return decision, nil
}

func (b *TokenBucket) key(parts ...string) string {
	return strings.Join(append([]string{b.cfg.KeyPrefix}, parts...), ":")
}

// ttlSeconds keeps an idle bucket long enough to refill completely
func (b *TokenBucket) ttlSeconds() int64 {
	refill := b.cfg.Refill
	if refill <= 0 {
		refill = 1
	}
	full := time.Duration(b.cfg.Capacity/refill+1) * b.cfg.Interval
	if full < time.Minute {
		full = time.Minute
	}
	return int64(full / time.Second)
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
