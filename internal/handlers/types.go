package handlers

import (
	"context"

	"github.com/serroba/signup-gateway/internal/catalog"
)

// CreateAccountRequest carries the raw JSON body; the gateway decodes and
// validates it so malformed payloads get the gateway's error shape.
type CreateAccountRequest struct {
	RawBody []byte `contentType:"application/json"`
}

// CreateAccountResponse is the credential as a JSON string.
type CreateAccountResponse struct {
	Body string `doc:"Password setup link for the new account" example:"https://cloud.example.com/s/abc123"`
}

// ListProvidersResponse is the redacted provider catalog.
type ListProvidersResponse struct {
	Body []catalog.PublicProvider
}

type requestMetaKey struct{}

// RequestMeta holds per-request client metadata.
type RequestMeta struct {
	// ClientIP is the best-effort originating address. It is client supplied
	// when a forwarding header is present.
	ClientIP  string
	UserAgent string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}
