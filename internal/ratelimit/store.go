package ratelimit

import (
	"context"
	"time"
)

// Reservation is the outcome of an atomic reserve attempt.
type Reservation struct {
	Admitted bool
	// Count is the counter value after the attempt.
	Count int64
	// TTL is the remaining lifetime of the counter.
	TTL time.Duration
}

// Store defines the counter storage used by the Tracker.
// Implementations must make Reserve atomic per key.
type Store interface {
	// Count returns the current counter value, 0 when absent or expired.
	Count(ctx context.Context, key string) (int64, error)

	// Reserve increments the counter unless that would exceed limit. A new or
	// expired counter gets the full window as its lifetime; an existing one
	// keeps its remaining lifetime. A rejected reserve leaves state untouched.
	Reserve(ctx context.Context, key string, limit int64, window time.Duration) (Reservation, error)

	// Release gives back one previously reserved slot. It never drops below zero.
	Release(ctx context.Context, key string) error

	// TTL returns the remaining lifetime of the counter, or a value <= 0 when absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
