package handlers

import (
	"context"

	"github.com/serroba/signup-gateway/internal/catalog"
)

// RedactedLister lists providers without their secret keys.
type RedactedLister interface {
	Redacted() []catalog.PublicProvider
}

// ProvidersHandler serves the public provider catalog.
type ProvidersHandler struct {
	catalog RedactedLister
}

// NewProvidersHandler creates a new providers handler.
func NewProvidersHandler(catalog RedactedLister) *ProvidersHandler {
	return &ProvidersHandler{catalog: catalog}
}

func (h *ProvidersHandler) ListProviders(_ context.Context, _ *struct{}) (*ListProvidersResponse, error) {
	return &ListProvidersResponse{Body: h.catalog.Redacted()}, nil
}
