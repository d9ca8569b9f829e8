package middleware

import (
	"context"
	"net/http"

	"github.com/arkham-district/secure-tokens/internal/auth"
)

type contextKey string

const requestInfoKey contextKey = "request_info"

// requestInfo collects fields discovered by inner middleware for the
// request log line written by Logger.
type requestInfo struct {
	credentialID string
}

func withRequestInfo(ctx context.Context) (context.Context, *requestInfo) {
	info := &requestInfo{}
	return context.WithValue(ctx, requestInfoKey, info), info
}

func setCredentialID(ctx context.Context, id string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.credentialID = id
	}
}

// GetGuard returns the request's Guard, set by Auth.Authenticate.
func GetGuard(r *http.Request) (*auth.Guard, bool) {
	return auth.FromContext(r.Context())
}
