// Package container wires the gateway's services with samber/do.
package container

import (
	"time"

	"github.com/serroba/signup-gateway/internal/clientip"
	"github.com/serroba/signup-gateway/internal/provisioning"
	"github.com/serroba/signup-gateway/internal/ratelimit"
)

type Options struct {
	Port             int    `default:"8888"                  help:"Port to listen on"                                      short:"p"`
	RedisAddr        string `default:"localhost:6379"        help:"Redis server address"                                   short:"r"`
	CatalogPath      string `default:"assets/preferred.json" help:"Provider catalog file (.json, .yaml or .yml)"           short:"c"`
	WatchCatalog     bool   `default:"true"                  help:"Reload the provider catalog when its file changes"`
	DatabaseURL      string `default:""                      help:"PostgreSQL URL for stored attempts; empty logs them"`
	LogFormat        string `default:"console"               help:"Log format: console or json"`
	QuotaLimit       int    `default:"5"                     help:"Create-account attempts allowed per client per window"`
	QuotaWindow      int    `default:"3660"                  help:"Quota window in seconds"`
	ConsumeOnFailure bool   `default:"true"                  help:"Count failed upstream attempts against the quota"`
	UpstreamTimeout  int    `default:"15"                    help:"Provider request timeout in seconds"`
	ClientIPHeaders  string `default:"Client-IP,X-Forwarded-For,X-Forwarded,Forwarded-For,Forwarded" help:"Ordered headers used to identify the client"`
	Breaker          bool   `default:"true"                  help:"Stop calling a provider after repeated transport failures"`
}

// QuotaConfig returns the tracker configuration described by the options.
func (o *Options) QuotaConfig() ratelimit.Config {
	return ratelimit.Config{
		Limit:           int64(o.QuotaLimit),
		Window:          time.Duration(o.QuotaWindow) * time.Second,
		RefundOnFailure: !o.ConsumeOnFailure,
	}
}

// Timeout returns the upstream call timeout.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.UpstreamTimeout) * time.Second
}

// BreakerConfig returns the upstream breaker settings.
func (o *Options) BreakerConfig() provisioning.BreakerConfig {
	cfg := provisioning.DefaultBreakerConfig()
	cfg.Enabled = o.Breaker

	return cfg
}

// Resolver returns the client address resolver for the configured headers.
func (o *Options) Resolver() *clientip.Resolver {
	return clientip.NewResolver(clientip.ParseHeaderList(o.ClientIPHeaders))
}
