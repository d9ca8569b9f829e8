package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/arkham-district/secure-tokens/internal/api/response"
	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/google/uuid"
)

// VerifyResult acknowledges a signed body.
type VerifyResult struct {
	Verified     bool      `json:"verified"`
	CredentialID uuid.UUID `json:"credential_id"`
	BodyBytes    int       `json:"body_bytes"`
	BodySHA256   string    `json:"body_sha256"`
}

// NewVerifyHandler returns an http.HandlerFunc for POST /api/v1/verify. It
// sits behind the signature middleware, so reaching it means the body was
// signed by the caller's credential.
func NewVerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, _, ok := principalOf(w, r)
		if !ok {
			return
		}
		cred := g.Credential(r.Context())
		if cred == nil {
			response.Error(w, http.StatusUnauthorized,
				auth.Reason(auth.ErrNoCredentials), "Invalid credentials", nil)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable request body", nil)
			return
		}
		sum := sha256.Sum256(body)

		response.JSON(w, VerifyResult{
			Verified:     true,
			CredentialID: cred.ID,
			BodyBytes:    len(body),
			BodySHA256:   hex.EncodeToString(sum[:]),
		})
	}
}
