package container

import (
	"context"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	_ "github.com/danielgtaylor/huma/v2/formats/cbor" // CBOR format support for huma
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/signup-gateway/internal/audit"
	"github.com/serroba/signup-gateway/internal/catalog"
	"github.com/serroba/signup-gateway/internal/handlers"
	"github.com/serroba/signup-gateway/internal/health"
	"github.com/serroba/signup-gateway/internal/metrics"
	"github.com/serroba/signup-gateway/internal/middleware"
	"github.com/serroba/signup-gateway/internal/provisioning"
	"github.com/serroba/signup-gateway/internal/ratelimit"
	"github.com/serroba/signup-gateway/internal/store"
	"go.uber.org/zap"
)

// RedisClient closes the underlying client on injector shutdown.
type RedisClient struct {
	*redis.Client
}

func (c *RedisClient) Shutdown() error {
	return c.Close()
}

// LoggerPackage provides *zap.Logger.
func LoggerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*zap.Logger, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.LogFormat == "json" {
			return zap.NewProduction()
		}

		return zap.NewDevelopment()
	})
}

// RedisPackage provides *RedisClient.
func RedisPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*RedisClient, error) {
		opts := do.MustInvoke[*Options](i)

		return &RedisClient{Client: redis.NewClient(&redis.Options{Addr: opts.RedisAddr})}, nil
	})
}

// MetricsPackage provides *metrics.Metrics registered on the default registry.
func MetricsPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*metrics.Metrics, error) {
		return metrics.New(prometheus.DefaultRegisterer), nil
	})
}

// CatalogPackage provides *catalog.Holder and, when enabled, a started *catalog.Watcher.
func CatalogPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*catalog.Holder, error) {
		opts := do.MustInvoke[*Options](i)
		m := do.MustInvoke[*metrics.Metrics](i)

		c, err := catalog.Load(opts.CatalogPath)
		if err != nil {
			m.CatalogLoaded(0, err)

			return nil, fmt.Errorf("load catalog: %w", err)
		}

		m.CatalogLoaded(c.Len(), nil)

		return catalog.NewHolder(c), nil
	})

	do.Provide(injector, func(i *do.Injector) (*catalog.Watcher, error) {
		opts := do.MustInvoke[*Options](i)
		holder := do.MustInvoke[*catalog.Holder](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		logger := do.MustInvoke[*zap.Logger](i)

		onReload := func(c *catalog.Catalog, err error) {
			if err != nil {
				m.CatalogLoaded(0, err)

				return
			}

			m.CatalogLoaded(c.Len(), nil)
		}

		w := catalog.NewWatcher(opts.CatalogPath, holder, onReload, logger)
		if err := w.Start(context.Background()); err != nil {
			return nil, fmt.Errorf("watch catalog: %w", err)
		}

		return w, nil
	})
}

// RateLimitPackage provides ratelimit.Store and *ratelimit.Tracker.
func RateLimitPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (ratelimit.Store, error) {
		client := do.MustInvoke[*RedisClient](i)

		return store.NewRateLimitRedisStore(client.Client), nil
	})

	do.Provide(injector, func(i *do.Injector) (*ratelimit.Tracker, error) {
		opts := do.MustInvoke[*Options](i)
		s := do.MustInvoke[ratelimit.Store](i)

		return ratelimit.NewTracker(s, opts.QuotaConfig()), nil
	})
}

// PublisherPackage provides *audit.Publisher backed by redis streams.
func PublisherPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*audit.Publisher, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)

		pub, err := audit.NewRedisPublisher(client.Client, logger)
		if err != nil {
			return nil, fmt.Errorf("create publisher: %w", err)
		}

		return audit.NewPublisher(pub), nil
	})
}

// GatewayPackage provides the provisioning upstream and gateway.
func GatewayPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (provisioning.Upstream, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		return provisioning.NewHTTPUpstream(opts.Timeout(), opts.BreakerConfig(), logger), nil
	})

	do.Provide(injector, func(i *do.Injector) (*provisioning.Gateway, error) {
		return provisioning.NewGateway(
			do.MustInvoke[*catalog.Holder](i),
			do.MustInvoke[*ratelimit.Tracker](i),
			do.MustInvoke[provisioning.Upstream](i),
			do.MustInvoke[*audit.Publisher](i).Publish(),
			do.MustInvoke[*metrics.Metrics](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
}

// HTTPPackage provides the chi router and the huma API with every route registered.
func HTTPPackage(injector *do.Injector) {
	do.Provide(injector, func(_ *do.Injector) (*chi.Mux, error) {
		router := chi.NewMux()
		router.Handle("/metrics", promhttp.Handler())

		return router, nil
	})

	do.Provide(injector, func(i *do.Injector) (huma.API, error) {
		opts := do.MustInvoke[*Options](i)
		router := do.MustInvoke[*chi.Mux](i)
		logger := do.MustInvoke[*zap.Logger](i)
		holder := do.MustInvoke[*catalog.Holder](i)

		if opts.WatchCatalog {
			_ = do.MustInvoke[*catalog.Watcher](i)
		}

		api := humachi.New(router, huma.DefaultConfig("Signup Gateway", "1.0.0"))
		api.UseMiddleware(middleware.RequestMeta(opts.Resolver()))

		handlers.RegisterRoutes(api,
			handlers.NewAccountHandler(do.MustInvoke[*provisioning.Gateway](i), logger),
			handlers.NewProvidersHandler(holder),
		)

		redisClient := do.MustInvoke[*RedisClient](i)
		health.RegisterRoutes(api, health.NewHandler(health.NewRedisChecker(redisClient.Client), holder))

		return api, nil
	})
}

// AuditStorePackage provides audit.Store: PostgreSQL when a database URL is
// configured, the log otherwise.
func AuditStorePackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (audit.Store, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		if opts.DatabaseURL == "" {
			logger.Info("no database configured, logging attempts")

			return audit.NewLogStore(logger), nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := pgxpool.New(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		pg := audit.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()

			return nil, fmt.Errorf("migrate postgres: %w", err)
		}

		return pg, nil
	})
}

// ConsumerPackage provides *audit.Consumer reading from redis streams.
func ConsumerPackage(injector *do.Injector) {
	do.Provide(injector, func(i *do.Injector) (*audit.Consumer, error) {
		client := do.MustInvoke[*RedisClient](i)
		logger := do.MustInvoke[*zap.Logger](i)
		auditStore := do.MustInvoke[audit.Store](i)

		sub, err := audit.NewRedisSubscriber(client.Client, logger)
		if err != nil {
			return nil, fmt.Errorf("create subscriber: %w", err)
		}

		return audit.NewConsumer(sub, auditStore, logger), nil
	})
}
