package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/serroba/signup-gateway/internal/catalog"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single provisioning call.
	DefaultTimeout = 15 * time.Second

	accountRequestPath = "/ocs/v2.php/account/request/"
	formContentType    = "application/x-www-form-urlencoded;charset=UTF-8"
	maxResponseBytes   = 1 << 20
)

// Response is what the provider answered.
type Response struct {
	StatusCode int
	// Reason is the status line reason phrase, e.g. "Conflict".
	Reason string
	Body   []byte
}

// Upstream issues account requests to a provider. An error means no
// response was obtained at all.
type Upstream interface {
	RequestAccount(ctx context.Context, provider catalog.Provider, email string) (*Response, error)
}

// AccountRequestURL builds the provider endpoint for an account request.
func AccountRequestURL(provider catalog.Provider) string {
	return provider.URL + accountRequestPath + provider.Key
}

// BreakerConfig tunes the per-provider circuit breaker.
type BreakerConfig struct {
	Enabled bool
	// Failures is the number of consecutive transport failures that opens the breaker.
	Failures uint32
	// Cooldown is how long the breaker stays open before a trial request.
	Cooldown time.Duration
}

// DefaultBreakerConfig opens after 5 consecutive transport failures for 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{Enabled: true, Failures: 5, Cooldown: 30 * time.Second}
}

// HTTPUpstream calls providers over HTTP. Each call is made exactly once.
type HTTPUpstream struct {
	client  *http.Client
	breaker BreakerConfig
	logger  *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewHTTPUpstream creates an HTTP upstream. A zero timeout uses DefaultTimeout.
func NewHTTPUpstream(timeout time.Duration, breaker BreakerConfig, logger *zap.Logger) *HTTPUpstream {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPUpstream{
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// RequestAccount posts email to the provider's account request endpoint.
func (u *HTTPUpstream) RequestAccount(ctx context.Context, provider catalog.Provider, email string) (*Response, error) {
	if !u.breaker.Enabled {
		return u.post(ctx, provider, email)
	}

	out, err := u.breakerFor(provider).Execute(func() (interface{}, error) {
		return u.post(ctx, provider, email)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("provider %q unavailable: %w", provider.Name, err)
		}

		return nil, err
	}

	return out.(*Response), nil
}

func (u *HTTPUpstream) post(ctx context.Context, provider catalog.Provider, email string) (*Response, error) {
	form := url.Values{"email": []string{email}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, AccountRequestURL(provider), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("invalid provider url %q", provider.URL)
	}

	req.Header.Set("Content-Type", formContentType)

	resp, err := u.client.Do(req)
	if err != nil {
		// The url error embeds the secret key; report the operation without it.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return nil, fmt.Errorf("%s %s: %w", urlErr.Op, provider.URL, urlErr.Err)
		}

		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", provider.URL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Body:       body,
	}, nil
}

func (u *HTTPUpstream) breakerFor(provider catalog.Provider) *gobreaker.CircuitBreaker {
	u.mu.Lock()
	defer u.mu.Unlock()

	if cb, ok := u.breakers[provider.URL]; ok {
		return cb
	}

	failures := u.breaker.Failures
	if failures == 0 {
		failures = DefaultBreakerConfig().Failures
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider.URL,
		MaxRequests: 1,
		Timeout:     u.breaker.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			u.logger.Warn("provider breaker state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	u.breakers[provider.URL] = cb

	return cb
}

// reasonPhrase extracts "Conflict" from "409 Conflict".
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	reason = strings.TrimSpace(reason)

	if reason == "" {
		return http.StatusText(resp.StatusCode)
	}

	return reason
}

// Compile-time check.
var _ Upstream = (*HTTPUpstream)(nil)
