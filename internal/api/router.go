package api

import (
	"net/http"

	mw "github.com/arkham-district/secure-tokens/internal/api/middleware"
	"github.com/arkham-district/secure-tokens/internal/api/response"
	"github.com/arkham-district/secure-tokens/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// AbilityManageCredentials is required to issue or revoke credentials over
// HTTP.
const AbilityManageCredentials = "credentials:write"

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	Signature *mw.Signature
	Metrics   *metrics.Metrics

	HealthHandler    http.HandlerFunc
	MeHandler        http.HandlerFunc
	ListCredentials  http.HandlerFunc
	IssueCredential  http.HandlerFunc
	RevokeCredential http.HandlerFunc
	VerifyHandler    http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Instrument(deps.Metrics))

	// Public endpoints
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/me", orNotImplemented(deps.MeHandler))
		r.Get("/api/v1/credentials", orNotImplemented(deps.ListCredentials))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireAbility(AbilityManageCredentials))

			r.Post("/api/v1/credentials", orNotImplemented(deps.IssueCredential))
			r.Delete("/api/v1/credentials/{id}", orNotImplemented(deps.RevokeCredential))
		})

		// Signed-body routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Signature.Verify)

			r.Post("/api/v1/verify", orNotImplemented(deps.VerifyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
