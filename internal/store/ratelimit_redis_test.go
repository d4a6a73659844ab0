package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/signup-gateway/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestRateLimitRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves until limit without mutating on reject", func(t *testing.T) {
		client, mr := newTestRedis(t)
		s := store.NewRateLimitRedisStore(client)

		for i := range 5 {
			res, err := s.Reserve(ctx, "requests_count_1.2.3.4", 5, 3660*time.Second)

			require.NoError(t, err)
			assert.True(t, res.Admitted, "reserve %d should be admitted", i+1)
			assert.Equal(t, int64(i+1), res.Count)
		}

		res, err := s.Reserve(ctx, "requests_count_1.2.3.4", 5, 3660*time.Second)

		require.NoError(t, err)
		assert.False(t, res.Admitted)
		assert.Equal(t, int64(5), res.Count)

		value, err := mr.Get("requests_count_1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, "5", value)
	})

	t.Run("sets full window on first reserve only", func(t *testing.T) {
		client, mr := newTestRedis(t)
		s := store.NewRateLimitRedisStore(client)

		res, err := s.Reserve(ctx, "k", 5, 3660*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 3660*time.Second, res.TTL)

		mr.FastForward(600 * time.Second)

		res, err = s.Reserve(ctx, "k", 5, 3660*time.Second)
		require.NoError(t, err)
		assert.Equal(t, 3060*time.Second, res.TTL, "remaining ttl carries over")
		assert.Equal(t, 3060*time.Second, mr.TTL("k"))
	})

	t.Run("restarts window after expiry", func(t *testing.T) {
		client, mr := newTestRedis(t)
		s := store.NewRateLimitRedisStore(client)

		for range 5 {
			_, err := s.Reserve(ctx, "k", 5, 3660*time.Second)
			require.NoError(t, err)
		}

		mr.FastForward(3661 * time.Second)

		count, err := s.Count(ctx, "k")
		require.NoError(t, err)
		assert.Zero(t, count)

		res, err := s.Reserve(ctx, "k", 5, 3660*time.Second)
		require.NoError(t, err)
		assert.True(t, res.Admitted)
		assert.Equal(t, int64(1), res.Count)
		assert.Equal(t, 3660*time.Second, res.TTL)
	})

	t.Run("release keeps expiry and floors at zero", func(t *testing.T) {
		client, mr := newTestRedis(t)
		s := store.NewRateLimitRedisStore(client)

		_, err := s.Reserve(ctx, "k", 5, 3660*time.Second)
		require.NoError(t, err)

		require.NoError(t, s.Release(ctx, "k"))
		require.NoError(t, s.Release(ctx, "k"))

		count, err := s.Count(ctx, "k")
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Equal(t, 3660*time.Second, mr.TTL("k"))
	})

	t.Run("ttl of missing key is zero", func(t *testing.T) {
		client, _ := newTestRedis(t)
		s := store.NewRateLimitRedisStore(client)

		ttl, err := s.TTL(ctx, "missing")

		require.NoError(t, err)
		assert.Zero(t, ttl)
	})

	t.Run("surfaces connection errors", func(t *testing.T) {
		client, mr := newTestRedis(t)
		s := store.NewRateLimitRedisStore(client)

		mr.Close()

		_, err := s.Count(ctx, "k")
		assert.Error(t, err)

		_, err = s.Reserve(ctx, "k", 5, time.Minute)
		assert.Error(t, err)
	})
}
