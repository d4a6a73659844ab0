package store

import (
	"context"
	"sync"
	"time"

	"github.com/serroba/signup-gateway/internal/ratelimit"
)

type counter struct {
	count     int64
	expiresAt time.Time
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store.
type RateLimitMemoryStore struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		counters: make(map[string]counter),
		now:      time.Now,
	}
}

// live returns the unexpired counter for key, dropping it if it lapsed.
// Callers must hold s.mu.
func (s *RateLimitMemoryStore) live(key string, now time.Time) (counter, bool) {
	c, ok := s.counters[key]
	if !ok {
		return counter{}, false
	}

	if !now.Before(c.expiresAt) {
		delete(s.counters, key)

		return counter{}, false
	}

	return c, true
}

func (s *RateLimitMemoryStore) Count(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, _ := s.live(key, s.now())

	return c.count, nil
}

func (s *RateLimitMemoryStore) Reserve(
	_ context.Context, key string, limit int64, window time.Duration,
) (ratelimit.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.live(key, now)

	if c.count+1 > limit {
		return ratelimit.Reservation{Count: c.count, TTL: c.expiresAt.Sub(now)}, nil
	}

	if !ok {
		c.expiresAt = now.Add(window)
	}

	c.count++
	s.counters[key] = c

	return ratelimit.Reservation{Admitted: true, Count: c.count, TTL: c.expiresAt.Sub(now)}, nil
}

func (s *RateLimitMemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(key, s.now())
	if !ok || c.count <= 0 {
		return nil
	}

	c.count--
	s.counters[key] = c

	return nil
}

func (s *RateLimitMemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	c, ok := s.live(key, now)
	if !ok {
		return 0, nil
	}

	return c.expiresAt.Sub(now), nil
}

// Compile-time check.
var _ ratelimit.Store = (*RateLimitMemoryStore)(nil)
