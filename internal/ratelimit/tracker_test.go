package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/serroba/signup-gateway/internal/ratelimit"
	"github.com/serroba/signup-gateway/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *store.RateLimitRedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	return store.NewRateLimitRedisStore(client)
}

func TestNewTracker_Defaults(t *testing.T) {
	tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), ratelimit.Config{})
	cfg := tracker.Config()

	assert.Equal(t, int64(5), cfg.Limit)
	assert.Equal(t, 3660*time.Second, cfg.Window)
	assert.Equal(t, "requests_count_", cfg.KeyPrefix)
	assert.Equal(t, "requests_count_203.0.113.9", tracker.Key("203.0.113.9"))
}

func TestTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("check does not consume", func(t *testing.T) {
		tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), ratelimit.DefaultConfig())

		for range 10 {
			d, err := tracker.Check(ctx, "client1")

			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, int64(5), d.Remaining)
		}
	})

	t.Run("sixth attempt in window is rejected", func(t *testing.T) {
		tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), ratelimit.DefaultConfig())

		for i := range 5 {
			d, err := tracker.Check(ctx, "client1")
			require.NoError(t, err)
			require.True(t, d.Allowed, "check %d", i+1)

			d, err = tracker.Consume(ctx, "client1")
			require.NoError(t, err)
			require.True(t, d.Allowed, "consume %d", i+1)
			assert.Equal(t, int64(4-i), d.Remaining)
		}

		d, err := tracker.Check(ctx, "client1")

		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Positive(t, d.RetryAfter)
		assert.LessOrEqual(t, d.RetryAfter, 3660*time.Second)

		d, err = tracker.Consume(ctx, "client1")

		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("tracks clients independently", func(t *testing.T) {
		tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), ratelimit.Config{Limit: 1})

		d, _ := tracker.Consume(ctx, "client1")
		assert.True(t, d.Allowed)

		d, _ = tracker.Check(ctx, "client1")
		assert.False(t, d.Allowed, "client1 should be rate limited")

		d, err := tracker.Check(ctx, "client2")

		require.NoError(t, err)
		assert.True(t, d.Allowed, "client2 should still be allowed")
	})

	t.Run("allows attempts after window expires", func(t *testing.T) {
		tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), ratelimit.Config{
			Limit:  2,
			Window: 50 * time.Millisecond,
		})

		for range 2 {
			d, _ := tracker.Consume(ctx, "client1")
			assert.True(t, d.Allowed)
		}

		d, _ := tracker.Check(ctx, "client1")
		assert.False(t, d.Allowed, "should be rate limited")

		time.Sleep(60 * time.Millisecond)

		d, err := tracker.Check(ctx, "client1")

		require.NoError(t, err)
		assert.True(t, d.Allowed, "should be allowed after window expires")
	})
}

func TestTracker_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("failures keep their slot by default", func(t *testing.T) {
		tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), ratelimit.DefaultConfig())

		for range 5 {
			_, err := tracker.Consume(ctx, "client1")
			require.NoError(t, err)
			require.NoError(t, tracker.Settle(ctx, "client1", false))
		}

		d, err := tracker.Check(ctx, "client1")

		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("zero config keeps failures counted", func(t *testing.T) {
		tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), ratelimit.Config{Limit: 1})

		_, err := tracker.Consume(ctx, "client1")
		require.NoError(t, err)
		require.NoError(t, tracker.Settle(ctx, "client1", false))

		d, err := tracker.Check(ctx, "client1")

		require.NoError(t, err)
		assert.False(t, d.Allowed)
	})

	t.Run("failures are refunded when refund on failure is set", func(t *testing.T) {
		cfg := ratelimit.DefaultConfig()
		cfg.RefundOnFailure = true
		tracker := ratelimit.NewTracker(store.NewRateLimitMemoryStore(), cfg)

		for range 10 {
			d, err := tracker.Consume(ctx, "client1")
			require.NoError(t, err)
			require.True(t, d.Allowed)
			require.NoError(t, tracker.Settle(ctx, "client1", false))
		}

		for range 5 {
			d, err := tracker.Consume(ctx, "client1")
			require.NoError(t, err)
			require.True(t, d.Allowed)
			require.NoError(t, tracker.Settle(ctx, "client1", true))
		}

		d, err := tracker.Check(ctx, "client1")

		require.NoError(t, err)
		assert.False(t, d.Allowed, "successes still count")
	})
}

func TestTracker_ConcurrentConsumeNeverExceedsLimit(t *testing.T) {
	stores := map[string]func(t *testing.T) ratelimit.Store{
		"memory": func(_ *testing.T) ratelimit.Store { return store.NewRateLimitMemoryStore() },
		"redis":  func(t *testing.T) ratelimit.Store { return newRedisStore(t) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			tracker := ratelimit.NewTracker(newStore(t), ratelimit.DefaultConfig())

			const callers = 50

			var (
				wg       sync.WaitGroup
				admitted atomic.Int64
				start    = make(chan struct{})
			)

			for range callers {
				wg.Add(1)

				go func() {
					defer wg.Done()
					<-start

					d, err := tracker.Consume(context.Background(), "same-client")
					if err == nil && d.Allowed {
						admitted.Add(1)
					}
				}()
			}

			close(start)
			wg.Wait()

			assert.Equal(t, int64(5), admitted.Load())
		})
	}
}

type failingStore struct {
	err error
}

func (f *failingStore) Count(context.Context, string) (int64, error) { return 0, f.err }
func (f *failingStore) Reserve(context.Context, string, int64, time.Duration) (ratelimit.Reservation, error) {
	return ratelimit.Reservation{}, f.err
}
func (f *failingStore) Release(context.Context, string) error                { return f.err }
func (f *failingStore) TTL(context.Context, string) (time.Duration, error) { return 0, f.err }

func TestTracker_StoreErrors(t *testing.T) {
	errStore := errors.New("store down")
	tracker := ratelimit.NewTracker(&failingStore{err: errStore}, ratelimit.DefaultConfig())

	_, err := tracker.Check(context.Background(), "c")
	require.ErrorIs(t, err, errStore)

	_, err = tracker.Consume(context.Background(), "c")
	require.ErrorIs(t, err, errStore)

	assert.NoError(t, tracker.Settle(context.Background(), "c", false), "default policy never touches the store")
}
