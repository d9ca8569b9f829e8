package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/arkham-district/secure-tokens/internal/api/response"
	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/metrics"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Auth provides authentication and ability-checking middleware.
type Auth struct {
	resolver *auth.Resolver
	metrics  *metrics.Metrics
}

// NewAuth creates a new Auth middleware. m may be nil.
func NewAuth(resolver *auth.Resolver, m *metrics.Metrics) *Auth {
	return &Auth{resolver: resolver, metrics: m}
}

// Authenticate resolves the Bearer token and stores the request's Guard in
// the context. Rejections get 401 with the reason code; lookup failures get
// 500.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g := a.resolver.Guard(extractBearerToken(r))

		if _, err := g.Authenticate(r.Context()); err != nil {
			if reason := auth.Reason(err); reason != "" {
				a.metrics.AuthAttempt(reason)
				slog.Info("authentication rejected",
					"reason", reason,
					"request_id", chimw.GetReqID(r.Context()),
				)
				unauthorized(w, reason, "Invalid credentials")
				return
			}
			a.metrics.AuthAttempt("error")
			slog.Error("authentication failed",
				"error", err,
				"request_id", chimw.GetReqID(r.Context()),
			)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate credentials", nil)
			return
		}
		a.metrics.AuthAttempt(metrics.OutcomeOK)

		if cred := g.Credential(r.Context()); cred != nil {
			setCredentialID(r.Context(), cred.ID.String())
		}

		next.ServeHTTP(w, r.WithContext(auth.NewContext(r.Context(), g)))
	})
}

// RequireAbility returns middleware that checks whether the authenticated
// credential grants ability.
func (a *Auth) RequireAbility(ability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g, ok := GetGuard(r)
			if !ok {
				unauthorized(w, auth.Reason(auth.ErrNoCredentials), "Invalid credentials")
				return
			}
			if !g.Can(r.Context(), ability) {
				response.Error(w, http.StatusForbidden,
					"FORBIDDEN", "Insufficient permissions", map[string]string{"ability": ability})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter, reason, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	response.Error(w, http.StatusUnauthorized, reason, message, nil)
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
