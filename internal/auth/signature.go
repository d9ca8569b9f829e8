package auth

import (
	"context"

	"github.com/arkham-district/secure-tokens/internal/keypair"
)

// VerifySignature checks a detached signature over the raw request body
// against the public key of the credential g resolved. Callers run it after
// authentication for the same request.
func VerifySignature(ctx context.Context, g *Guard, signature string, body []byte) error {
	if signature == "" {
		return ErrMissingSignatureHeader
	}
	if g == nil {
		return ErrNoCredentials
	}
	cred := g.Credential(ctx)
	if cred == nil {
		return ErrNoCredentials
	}
	if !keypair.Verify(body, signature, cred.PublicKey) {
		return ErrInvalidSignature
	}
	return nil
}
