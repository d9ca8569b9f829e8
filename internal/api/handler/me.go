package handler

import (
	"net/http"

	"github.com/arkham-district/secure-tokens/internal/api/response"
	"github.com/arkham-district/secure-tokens/pkg/models"
)

// MeResult describes the caller. Credential is nil for injected principals.
type MeResult struct {
	Principal  principalView      `json:"principal"`
	Credential *models.Credential `json:"credential,omitempty"`
}

// NewMeHandler returns an http.HandlerFunc for GET /api/v1/me.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, p, ok := principalOf(w, r)
		if !ok {
			return
		}
		response.JSON(w, MeResult{
			Principal:  viewOf(p),
			Credential: g.Credential(r.Context()),
		})
	}
}
