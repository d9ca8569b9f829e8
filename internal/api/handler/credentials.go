package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arkham-district/secure-tokens/internal/api/response"
	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/metrics"
	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CredentialService hands out the credential capability of a principal.
// *auth.Issuer implements it.
type CredentialService interface {
	For(owner auth.Principal) auth.CredentialOwner
}

// CredentialsHandler serves the caller's own credentials.
type CredentialsHandler struct {
	svc     CredentialService
	metrics *metrics.Metrics
}

// NewCredentialsHandler creates a CredentialsHandler. m may be nil.
func NewCredentialsHandler(svc CredentialService, m *metrics.Metrics) *CredentialsHandler {
	return &CredentialsHandler{svc: svc, metrics: m}
}

// List handles GET /api/v1/credentials.
func (h *CredentialsHandler) List(w http.ResponseWriter, r *http.Request) {
	_, p, ok := principalOf(w, r)
	if !ok {
		return
	}

	creds, err := h.svc.For(p).ListCredentials(r.Context())
	if err != nil {
		slog.Error("list credentials failed", "owner_kind", p.PrincipalKind(), "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list credentials", nil)
		return
	}
	if creds == nil {
		creds = []*models.Credential{}
	}
	response.Collection(w, creds, response.CollectionMeta{Total: len(creds)})
}

// Create handles POST /api/v1/credentials. The response carries the only
// copy of the secret token.
func (h *CredentialsHandler) Create(w http.ResponseWriter, r *http.Request) {
	g, p, ok := principalOf(w, r)
	if !ok {
		return
	}

	var req struct {
		Name      string     `json:"name"`
		Abilities []string   `json:"abilities"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return
	}
	if !auth.CanGrant(g.Credential(r.Context()), req.Abilities) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN",
			"Cannot grant abilities the calling credential does not hold", nil)
		return
	}

	result, err := h.svc.For(p).IssueCredential(r.Context(), auth.IssueParams{
		Name:      req.Name,
		Abilities: req.Abilities,
		ExpiresAt: req.ExpiresAt,
	})
	if errors.Is(err, auth.ErrInvalidIssue) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if err != nil {
		slog.Error("issue credential failed", "owner_kind", p.PrincipalKind(), "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue credential", nil)
		return
	}

	h.metrics.CredentialIssued()
	slog.Info("credential issued",
		"credential_id", result.Credential.ID,
		"owner_kind", p.PrincipalKind(),
		"owner_id", p.PrincipalID(),
	)
	response.Created(w, result)
}

// Delete handles DELETE /api/v1/credentials/{id}. Revocation is immediate.
func (h *CredentialsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	_, p, ok := principalOf(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "id must be a UUID", nil)
		return
	}

	err = h.svc.For(p).DeleteCredential(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Credential not found", nil)
		return
	}
	if err != nil {
		slog.Error("delete credential failed", "credential_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete credential", nil)
		return
	}

	h.metrics.CredentialRevoked()
	slog.Info("credential revoked", "credential_id", id, "owner_kind", p.PrincipalKind())
	response.NoContent(w)
}
