package middleware

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/signup-gateway/internal/clientip"
	"github.com/serroba/signup-gateway/internal/handlers"
)

// RequestMeta is a middleware that adds the resolved client address and user-agent to the request context.
func RequestMeta(resolver *clientip.Resolver) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		meta := handlers.RequestMeta{
			ClientIP:  resolver.Resolve(ctx),
			UserAgent: ctx.Header("User-Agent"),
		}

		newCtx := handlers.ContextWithRequestMeta(ctx.Context(), meta)
		ctx = huma.WithContext(ctx, newCtx)

		next(ctx)
	}
}
