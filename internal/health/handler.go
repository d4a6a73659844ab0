package health

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
)

// Checker defines the interface for checking service health.
type Checker interface {
	Ping(ctx context.Context) error
}

// RedisChecker adapts a redis client to the Checker interface.
type RedisChecker struct {
	client redis.UniversalClient
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{client: client}
}

// Ping checks Redis connectivity.
func (r *RedisChecker) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Sized reports how many providers are loaded.
type Sized interface {
	Len() int
}

// Handler handles health check operations.
type Handler struct {
	redis   Checker
	catalog Sized
}

// NewHandler creates a new health handler.
func NewHandler(redis Checker, catalog Sized) *Handler {
	return &Handler{redis: redis, catalog: catalog}
}

// Response is the response for health check endpoint.
type Response struct {
	Body struct {
		Status    string `json:"status"`
		Redis     string `json:"redis"`
		Providers int    `json:"providers"`
	}
}

// Check reports redis connectivity and the catalog size. Without redis the
// quota cannot be checked, so create-account requests fail.
func (h *Handler) Check(ctx context.Context, _ *struct{}) (*Response, error) {
	resp := &Response{}
	resp.Body.Status = "ok"
	resp.Body.Providers = h.catalog.Len()

	if err := h.redis.Ping(ctx); err != nil {
		resp.Body.Redis = "unhealthy"
		resp.Body.Status = "degraded"
	} else {
		resp.Body.Redis = "healthy"
	}

	if resp.Body.Providers == 0 {
		resp.Body.Status = "degraded"
	}

	return resp, nil
}

// RegisterRoutes registers health check routes.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Get(api, "/health", h.Check)
}
