package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/signup-gateway/internal/ratelimit"
)

// reserveLua takes one slot if the counter stays within the limit.
//
// KEYS[1] = counter key. ARGV[1] = limit, ARGV[2] = window (s).
// Returns {admitted (0|1), count, ttl (s)}.
//
// INCR keeps an existing expiry, so only a fresh counter gets the full window.
const reserveLua = `
local key    = KEYS[1]
local limit  = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local count = tonumber(redis.call('GET', key) or '0')
if count + 1 > limit then
  return {0, count, redis.call('TTL', key)}
end

count = redis.call('INCR', key)
local ttl = redis.call('TTL', key)
if ttl <= 0 then
  redis.call('EXPIRE', key, window)
  ttl = window
end
return {1, count, ttl}
`

// releaseLua decrements the counter without going below zero or touching its expiry.
const releaseLua = `
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count <= 0 then
  return 0
end
return redis.call('DECR', KEYS[1])
`

var (
	reserveScript = redis.NewScript(reserveLua)
	releaseScript = redis.NewScript(releaseLua)
)

// RateLimitRedisStore is a Redis implementation of ratelimit.Store.
// Counters are plain integer keys with a TTL, shared by every gateway replica.
type RateLimitRedisStore struct {
	client redis.Cmdable
}

// NewRateLimitRedisStore creates a new Redis-backed rate limit store.
func NewRateLimitRedisStore(client redis.Cmdable) *RateLimitRedisStore {
	return &RateLimitRedisStore{client: client}
}

func (r *RateLimitRedisStore) Count(ctx context.Context, key string) (int64, error) {
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, fmt.Errorf("read counter: %w", err)
	}

	return count, nil
}

func (r *RateLimitRedisStore) Reserve(
	ctx context.Context, key string, limit int64, window time.Duration,
) (ratelimit.Reservation, error) {
	seconds := int64(window / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	vals, err := reserveScript.Run(ctx, r.client, []string{key}, limit, seconds).Int64Slice()
	if err != nil {
		return ratelimit.Reservation{}, fmt.Errorf("reserve counter: %w", err)
	}

	if len(vals) != 3 {
		return ratelimit.Reservation{}, fmt.Errorf("reserve counter: unexpected reply length %d", len(vals))
	}

	return ratelimit.Reservation{
		Admitted: vals[0] == 1,
		Count:    vals[1],
		TTL:      time.Duration(vals[2]) * time.Second,
	}, nil
}

func (r *RateLimitRedisStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, r.client, []string{key}).Err(); err != nil {
		return fmt.Errorf("release counter: %w", err)
	}

	return nil
}

func (r *RateLimitRedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("read counter ttl: %w", err)
	}

	// Redis reports -1 (no expiry) and -2 (missing) as negative durations.
	if ttl < 0 {
		return 0, nil
	}

	return ttl, nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitRedisStore)(nil)
