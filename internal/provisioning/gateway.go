// Package provisioning forwards quota-gated account requests to storage providers.
package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jaevor/go-nanoid"
	"github.com/serroba/signup-gateway/internal/audit"
	"github.com/serroba/signup-gateway/internal/catalog"
	"github.com/serroba/signup-gateway/internal/metrics"
	"github.com/serroba/signup-gateway/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	ocsSuffix       = "/ocs"
	attemptIDLength = 21
)

// CatalogSource resolves a provider by its public index.
type CatalogSource interface {
	Resolve(index int) (catalog.Provider, error)
}

// Gateway handles create-account requests.
type Gateway struct {
	catalog  CatalogSource
	tracker  *ratelimit.Tracker
	upstream Upstream
	publish  audit.Publish
	metrics  *metrics.Metrics
	logger   *zap.Logger

	newID func() string
	now   func() time.Time
}

// NewGateway creates a gateway. A nil publish discards audit events and nil
// metrics are not recorded.
func NewGateway(
	source CatalogSource,
	tracker *ratelimit.Tracker,
	upstream Upstream,
	publish audit.Publish,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Gateway {
	if publish == nil {
		publish = audit.Discard
	}

	return &Gateway{
		catalog:  source,
		tracker:  tracker,
		upstream: upstream,
		publish:  publish,
		metrics:  m,
		logger:   logger,
		newID:    mustIDGenerator(attemptIDLength),
		now:      time.Now,
	}
}

// attempt is the result of one upstream call.
type attempt struct {
	credential string
	outcome    audit.Outcome
	status     int
	err        error
}

// CreateAccount validates body, checks the client's quota and asks the
// chosen provider for an account. It returns the credential on success and
// an *Error for every failure the caller should see.
func (g *Gateway) CreateAccount(ctx context.Context, body []byte, clientKey string) (string, error) {
	decision, err := g.tracker.Check(ctx, clientKey)
	if err != nil {
		return "", fmt.Errorf("check quota: %w", err)
	}

	if !decision.Allowed {
		g.metrics.RateLimited()

		return "", RateLimited(decision.RetryAfter)
	}

	req, err := ParseAccountRequest(body)
	if err != nil {
		return "", InvalidParam(MessageInvalidParams, err)
	}

	provider, err := g.catalog.Resolve(req.ProviderID)
	if err != nil {
		return "", InvalidParam(MessageInvalidParams, err)
	}

	decision, err = g.tracker.Consume(ctx, clientKey)
	if err != nil {
		return "", fmt.Errorf("consume quota: %w", err)
	}

	if !decision.Allowed {
		g.metrics.RateLimited()

		return "", RateLimited(decision.RetryAfter)
	}

	result := g.call(ctx, provider, req)

	if err := g.tracker.Settle(ctx, clientKey, result.err == nil); err != nil {
		g.logger.Error("failed to settle quota", zap.Error(err))
	}

	g.record(provider, req, result)

	return result.credential, result.err
}

// call performs the single upstream request. It runs to completion or
// timeout even if the caller goes away, since the slot is already consumed.
func (g *Gateway) call(ctx context.Context, provider catalog.Provider, req AccountRequest) attempt {
	ctx = context.WithoutCancel(ctx)

	start := g.now()
	resp, err := g.upstream.RequestAccount(ctx, provider, req.Email)
	g.metrics.ObserveUpstream(provider.Name, g.now().Sub(start))

	if err != nil {
		return attempt{
			outcome: audit.OutcomeTransportError,
			err:     Transport(err),
		}
	}

	if resp.StatusCode != http.StatusCreated {
		return attempt{
			outcome: audit.OutcomeUpstreamError,
			status:  resp.StatusCode,
			err:     upstreamFailure(resp),
		}
	}

	credential, ok := setPassword(resp.Body)
	if !ok {
		return attempt{
			outcome: audit.OutcomeInvalidResponse,
			status:  resp.StatusCode,
			err:     InvalidParam(MessageUnknownError, nil),
		}
	}

	if req.OCSAPI {
		credential += ocsSuffix
	}

	return attempt{
		credential: credential,
		outcome:    audit.OutcomeCreated,
		status:     resp.StatusCode,
	}
}

func (g *Gateway) record(provider catalog.Provider, req AccountRequest, result attempt) {
	g.metrics.ObserveAttempt(string(result.outcome))

	event := &audit.AttemptEvent{
		AttemptID:     g.newID(),
		ProviderIndex: provider.Index,
		ProviderName:  provider.Name,
		Outcome:       result.outcome,
		Status:        result.status,
		Newsletter:    req.Newsletter,
		OCSAPI:        req.OCSAPI,
		OccurredAt:    g.now().UTC(),
	}

	fields := []zap.Field{
		zap.String("attemptId", event.AttemptID),
		zap.Int("provider", provider.Index),
		zap.String("outcome", string(result.outcome)),
		zap.Int("status", result.status),
	}

	if result.err != nil {
		g.logger.Warn("provisioning attempt failed", append(fields, zap.Error(result.err))...)
	} else {
		g.logger.Info("account provisioned", fields...)
	}

	if err := g.publish(event); err != nil {
		g.logger.Error("failed to publish attempt event",
			zap.String("attemptId", event.AttemptID),
			zap.Error(err),
		)
	}
}

type upstreamBody struct {
	Data struct {
		Message     *string         `json:"message"`
		SetPassword json.RawMessage `json:"setPassword"`
	} `json:"data"`
}

// upstreamFailure passes a non-201 answer through with the provider's status.
func upstreamFailure(resp *Response) *Error {
	code := resp.Reason
	if code == "" {
		code = http.StatusText(resp.StatusCode)
	}

	message := code

	var body upstreamBody
	if err := json.Unmarshal(resp.Body, &body); err == nil && body.Data.Message != nil {
		message = *body.Data.Message
	}

	return UpstreamFailure(resp.StatusCode, code, message)
}

// setPassword extracts data.setPassword when it is a JSON string.
func setPassword(raw []byte) (string, bool) {
	var body upstreamBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", false
	}

	// null decodes into a string without error.
	if len(body.Data.SetPassword) == 0 || body.Data.SetPassword[0] != '"' {
		return "", false
	}

	var credential string
	if err := json.Unmarshal(body.Data.SetPassword, &credential); err != nil {
		return "", false
	}

	return credential, true
}

// mustIDGenerator panics when length is outside what nanoid supports.
func mustIDGenerator(length int) func() string {
	gen, err := nanoid.Standard(length)
	if err != nil {
		panic(fmt.Sprintf("attempt id generator: %v", err))
	}

	return gen
}
