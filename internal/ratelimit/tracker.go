package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultWindow is the lifetime of a client's counter from its first consumed slot.
	DefaultWindow = 3660 * time.Second
	// DefaultLimit is the number of attempts allowed per window.
	DefaultLimit = 5
	// DefaultKeyPrefix namespaces counters in the shared store.
	DefaultKeyPrefix = "requests_count_"
)

// Config holds the quota parameters.
type Config struct {
	Limit     int64
	Window    time.Duration
	KeyPrefix string

	// RefundOnFailure returns the slot of an attempt that failed upstream, so
	// only successes count. The zero value keeps failures counted.
	RefundOnFailure bool
}

// DefaultConfig returns the production quota: 5 attempts per 3660 seconds,
// failures included.
func DefaultConfig() Config {
	return Config{
		Limit:     DefaultLimit,
		Window:    DefaultWindow,
		KeyPrefix: DefaultKeyPrefix,
	}
}

// Decision is the result of a quota check.
type Decision struct {
	Allowed   bool
	Count     int64
	Remaining int64
	// RetryAfter is how long until the counter expires. Only set when not allowed.
	RetryAfter time.Duration
}

// Tracker enforces a per-client attempt quota on top of a Store.
type Tracker struct {
	store Store
	cfg   Config
}

// NewTracker creates a tracker. Zero-valued fields of cfg take defaults.
func NewTracker(store Store, cfg Config) *Tracker {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}

	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	return &Tracker{store: store, cfg: cfg}
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Key returns the store key for a client.
func (t *Tracker) Key(clientKey string) string {
	return t.cfg.KeyPrefix + clientKey
}

// Check reports whether one more attempt would be admitted. It does not mutate state.
func (t *Tracker) Check(ctx context.Context, clientKey string) (Decision, error) {
	key := t.Key(clientKey)

	count, err := t.store.Count(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	if count+1 > t.cfg.Limit {
		return t.rejected(ctx, key, count)
	}

	return Decision{Allowed: true, Count: count, Remaining: t.cfg.Limit - count}, nil
}

// Consume atomically takes one slot. Concurrent callers for the same client
// can never take more than Limit slots per window.
func (t *Tracker) Consume(ctx context.Context, clientKey string) (Decision, error) {
	key := t.Key(clientKey)

	res, err := t.store.Reserve(ctx, key, t.cfg.Limit, t.cfg.Window)
	if err != nil {
		return Decision{}, err
	}

	if !res.Admitted {
		return Decision{
			Count:      res.Count,
			RetryAfter: t.retryAfter(res.TTL),
		}, nil
	}

	return Decision{Allowed: true, Count: res.Count, Remaining: t.cfg.Limit - res.Count}, nil
}

// Settle finalises a consumed slot once the attempt outcome is known.
// Failed attempts are refunded only when RefundOnFailure is set.
func (t *Tracker) Settle(ctx context.Context, clientKey string, succeeded bool) error {
	if succeeded || !t.cfg.RefundOnFailure {
		return nil
	}

	return t.store.Release(ctx, t.Key(clientKey))
}

func (t *Tracker) rejected(ctx context.Context, key string, count int64) (Decision, error) {
	ttl, err := t.store.TTL(ctx, key)
	if err != nil {
		return Decision{}, err
	}

	return Decision{Count: count, RetryAfter: t.retryAfter(ttl)}, nil
}

func (t *Tracker) retryAfter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return t.cfg.Window
	}

	return ttl
}
