package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"checkin/internal/ratelimit/models"
)

// slidingWindowScript keeps one sorted set per key scored by arrival time in
// milliseconds. Trimming, counting and inserting happen atomically inside
// Redis so concurrent instances share one window.
//
// KEYS[1] bucket key
// ARGV: now_ms, window_ms, limit, cost, member_prefix
// Returns {allowed, count, oldest_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local prefix = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)

local allowed = 0
if count + cost <= limit then
  for i = 1, cost do
    redis.call('ZADD', key, now, prefix .. ':' .. i)
  end
  count = count + cost
  allowed = 1
end
redis.call('PEXPIRE', key, window)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end
return {allowed, count, oldest}
`)

// RedisBucketStore is the distributed sliding window store.
type RedisBucketStore struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// RedisOption configures a RedisBucketStore.
type RedisOption func(*RedisBucketStore)

// WithKeyPrefix namespaces bucket keys. Defaults to "checkin:ratelimit:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisBucketStore) { s.keyPrefix = prefix }
}

// WithRedisClock overrides the time source used for scores.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisBucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedis creates a Redis backed bucket store.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisBucketStore {
	s := &RedisBucketStore{
		client:    client,
		keyPrefix: "checkin:ratelimit:",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow checks if a request is allowed and increments the counter.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

// AllowN checks if a request with custom cost is allowed.
func (s *RedisBucketStore) AllowN(ctx context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	nowMs := now.UnixMilli()
	res, err := slidingWindowScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		nowMs, window.Milliseconds(), limit, cost, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("sliding window script: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("sliding window script: unexpected reply length %d", len(res))
	}

	allowed := res[0] == 1
	count := int(res[1])
	resetAt := time.UnixMilli(res[2]).Add(window)

	result := &models.RateLimitResult{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   resetAt,
	}
	if !allowed {
		result.Remaining = 0
		result.RetryAfter = models.RetryAfterSeconds(now, resetAt)
	}
	return result, nil
}

// Reset clears the rate limit counter for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset bucket: %w", err)
	}
	return nil
}

// GetCurrentCount returns the number of entries still inside the window.
func (s *RedisBucketStore) GetCurrentCount(ctx context.Context, key string) (int, error) {
	n, err := s.client.ZCard(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("count bucket: %w", err)
	}
	return int(n), nil
}
