package container_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/samber/do"
	"github.com/serroba/signup-gateway/internal/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts := &container.Options{
		QuotaLimit:       3,
		QuotaWindow:      60,
		ConsumeOnFailure: true,
		UpstreamTimeout:  15,
		ClientIPHeaders:  "X-Real-IP, ,Client-IP",
		Breaker:          false,
	}

	cfg := opts.QuotaConfig()
	assert.Equal(t, int64(3), cfg.Limit)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.False(t, cfg.RefundOnFailure)

	opts.ConsumeOnFailure = false
	assert.True(t, opts.QuotaConfig().RefundOnFailure)

	assert.Equal(t, 15*time.Second, opts.Timeout())
	assert.False(t, opts.BreakerConfig().Enabled)
	assert.Equal(t, []string{"X-Real-IP", "Client-IP"}, opts.Resolver().Headers())
}

func TestServerWiring(t *testing.T) {
	mr := miniredis.RunT(t)

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: Alpha
  url: https://alpha.example.com
  key: alpha-secret
`), 0o600))

	injector := do.New()
	do.ProvideValue(injector, &container.Options{
		RedisAddr:       mr.Addr(),
		CatalogPath:     path,
		WatchCatalog:    true,
		LogFormat:       "json",
		QuotaLimit:      5,
		QuotaWindow:     3660,
		UpstreamTimeout: 1,
	})
	container.LoggerPackage(injector)
	container.RedisPackage(injector)
	container.MetricsPackage(injector)
	container.CatalogPackage(injector)
	container.RateLimitPackage(injector)
	container.PublisherPackage(injector)
	container.GatewayPackage(injector)
	container.HTTPPackage(injector)

	t.Cleanup(func() { _ = injector.Shutdown() })

	router := do.MustInvoke[*chi.Mux](injector)
	_ = do.MustInvoke[huma.API](injector)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

		return w
	}

	t.Run("providers are listed without keys", func(t *testing.T) {
		w := get("/register/providers")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"index":0,"name":"Alpha","url":"https://alpha.example.com"}]`, w.Body.String())
	})

	t.Run("health reports redis and catalog", func(t *testing.T) {
		w := get("/health")

		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "healthy", body["redis"])
		assert.InDelta(t, 1, body["providers"], 0)
	})

	t.Run("metrics are exposed", func(t *testing.T) {
		w := get("/metrics")

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "signup_gateway_catalog_providers 1"))
	})

	t.Run("invalid request is rejected without consuming quota", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/register/account",
			strings.NewReader(`{"id": 5, "email": "user@example.com"}`))
		req.Header.Set("X-Forwarded-For", "203.0.113.50")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, mr.Exists("requests_count_203.0.113.50"))
	})
}
