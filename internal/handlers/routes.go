package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the signup routes under /register.
func RegisterRoutes(api huma.API, accounts *AccountHandler, providers *ProvidersHandler) {
	// POST /register/account - Request an account from a provider
	// Quota is enforced by the gateway, not by route metadata
	huma.Register(api, huma.Operation{
		OperationID: "create-account",
		Method:      http.MethodPost,
		Path:        "/register/account",
		Summary:     "Request a provider account",
		Description: "Asks the selected provider to create an account for the given email. " +
			"Attempts are limited per client, 5 per 3660 seconds by default.",
		Tags: []string{"Register"},
		Errors: []int{
			http.StatusBadRequest,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
		},
	}, accounts.CreateAccount)

	// GET /register/providers - Public provider catalog
	huma.Register(api, huma.Operation{
		OperationID: "list-providers",
		Method:      http.MethodGet,
		Path:        "/register/providers",
		Summary:     "List providers",
		Description: "Returns every provider's index, name and URL. The index is the id used to request an account.",
		Tags:        []string{"Register"},
	}, providers.ListProviders)
}
