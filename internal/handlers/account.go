package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/signup-gateway/internal/provisioning"
	"go.uber.org/zap"
)

// AccountCreator provisions accounts on behalf of a client.
type AccountCreator interface {
	CreateAccount(ctx context.Context, body []byte, clientKey string) (string, error)
}

// AccountHandler handles create-account requests.
type AccountHandler struct {
	gateway AccountCreator
	logger  *zap.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(gateway AccountCreator, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{gateway: gateway, logger: logger}
}

func (h *AccountHandler) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*CreateAccountResponse, error) {
	meta := RequestMetaFromContext(ctx)

	credential, err := h.gateway.CreateAccount(ctx, req.RawBody, meta.ClientIP)
	if err != nil {
		var pe *provisioning.Error
		if errors.As(err, &pe) {
			return nil, pe
		}

		h.logger.Error("create account failed", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to process request")
	}

	return &CreateAccountResponse{Body: credential}, nil
}
