package auth

import "errors"

// Rejections. Authentication failures come from Resolver.Authenticate and
// Guard; signature failures from VerifySignature. ErrNoCredentials belongs
// to both families.
var (
	ErrNoCredentials          = errors.New("auth: no credentials")
	ErrMalformedToken         = errors.New("auth: malformed token")
	ErrUnknownCredential      = errors.New("auth: unknown credential")
	ErrExpired                = errors.New("auth: credential expired")
	ErrMissingSignatureHeader = errors.New("auth: missing signature")
	ErrInvalidSignature       = errors.New("auth: invalid signature")
)

// ErrUnknownOwnerKind is returned by OwnerRegistry.Resolve when no loader is
// registered for a kind.
var ErrUnknownOwnerKind = errors.New("auth: unknown owner kind")

var reasons = []struct {
	err  error
	code string
}{
	{ErrNoCredentials, "NoCredentials"},
	{ErrMalformedToken, "MalformedToken"},
	{ErrUnknownCredential, "UnknownCredential"},
	{ErrExpired, "Expired"},
	{ErrMissingSignatureHeader, "MissingSignatureHeader"},
	{ErrInvalidSignature, "InvalidSignature"},
}

// Reason returns the reason code for a rejection, or "" if err is not one.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return ""
}

// IsRejection reports whether err is a rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	return Reason(err) != ""
}
