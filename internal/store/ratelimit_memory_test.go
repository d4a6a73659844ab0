package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/serroba/signup-gateway/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("reserves until limit", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		for i := range 3 {
			res, err := s.Reserve(ctx, "key1", 3, time.Minute)

			require.NoError(t, err)
			assert.True(t, res.Admitted)
			assert.Equal(t, int64(i+1), res.Count)
		}

		res, err := s.Reserve(ctx, "key1", 3, time.Minute)

		require.NoError(t, err)
		assert.False(t, res.Admitted)
		assert.Equal(t, int64(3), res.Count, "rejected reserve does not mutate the counter")

		count, err := s.Count(ctx, "key1")
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
	})

	t.Run("tracks keys independently", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		_, _ = s.Reserve(ctx, "key1", 5, time.Minute)
		_, _ = s.Reserve(ctx, "key1", 5, time.Minute)

		res, err := s.Reserve(ctx, "key2", 5, time.Minute)

		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Count, "key2 should have its own counter")
	})

	t.Run("keeps the first expiry on later reserves", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		first, err := s.Reserve(ctx, "key1", 5, 200*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)

		second, err := s.Reserve(ctx, "key1", 5, 200*time.Millisecond)
		require.NoError(t, err)

		assert.Less(t, second.TTL, first.TTL, "window is not refreshed by later reserves")
	})

	t.Run("restarts window after expiry", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		_, _ = s.Reserve(ctx, "key1", 2, 50*time.Millisecond)
		_, _ = s.Reserve(ctx, "key1", 2, 50*time.Millisecond)

		time.Sleep(60 * time.Millisecond)

		count, err := s.Count(ctx, "key1")
		require.NoError(t, err)
		assert.Zero(t, count)

		res, err := s.Reserve(ctx, "key1", 2, 50*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, res.Admitted)
		assert.Equal(t, int64(1), res.Count)
	})

	t.Run("release gives back a slot and never goes negative", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		_, _ = s.Reserve(ctx, "key1", 5, time.Minute)

		require.NoError(t, s.Release(ctx, "key1"))
		require.NoError(t, s.Release(ctx, "key1"))
		require.NoError(t, s.Release(ctx, "missing"))

		count, err := s.Count(ctx, "key1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("ttl is zero for missing key", func(t *testing.T) {
		s := store.NewRateLimitMemoryStore()

		ttl, err := s.TTL(ctx, "missing")

		require.NoError(t, err)
		assert.Zero(t, ttl)
	})
}
