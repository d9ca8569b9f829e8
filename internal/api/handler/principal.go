package handler

import (
	"log/slog"
	"net/http"

	mw "github.com/arkham-district/secure-tokens/internal/api/middleware"
	"github.com/arkham-district/secure-tokens/internal/api/response"
	"github.com/arkham-district/secure-tokens/internal/auth"
)

// principalOf returns the authenticated principal, writing the error
// response itself when there is none.
func principalOf(w http.ResponseWriter, r *http.Request) (*auth.Guard, auth.Principal, bool) {
	g, ok := mw.GetGuard(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized,
			auth.Reason(auth.ErrNoCredentials), "Invalid credentials", nil)
		return nil, nil, false
	}
	p, err := g.Authenticate(r.Context())
	if err != nil {
		if reason := auth.Reason(err); reason != "" {
			response.Error(w, http.StatusUnauthorized, reason, "Invalid credentials", nil)
			return nil, nil, false
		}
		slog.Error("resolve principal failed", "error", err)
		response.Error(w, http.StatusInternalServerError,
			"INTERNAL_ERROR", "Failed to validate credentials", nil)
		return nil, nil, false
	}
	return g, p, true
}

type principalView struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func viewOf(p auth.Principal) principalView {
	return principalView{Kind: p.PrincipalKind(), ID: p.PrincipalID()}
}
