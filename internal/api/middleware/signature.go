package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/arkham-district/secure-tokens/internal/api/response"
	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/metrics"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// SignatureHeader carries the detached signature of the raw request body.
const SignatureHeader = "X-Signature"

const defaultMaxBodyBytes = 1 << 20

// Signature verifies signed request bodies. It must run after
// Auth.Authenticate.
type Signature struct {
	metrics      *metrics.Metrics
	maxBodyBytes int64
}

// NewSignature creates a new Signature middleware. m may be nil.
func NewSignature(m *metrics.Metrics) *Signature {
	return &Signature{metrics: m, maxBodyBytes: defaultMaxBodyBytes}
}

// Verify reads the body, checks it against the X-Signature header and the
// credential's public key, and hands downstream handlers an unread copy.
func (s *Signature) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge,
					"BODY_TOO_LARGE", "Request body too large", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable request body", nil)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		g, _ := GetGuard(r)
		if err := auth.VerifySignature(r.Context(), g, r.Header.Get(SignatureHeader), body); err != nil {
			reason := auth.Reason(err)
			s.metrics.SignatureCheck(reason)
			slog.Info("signature rejected",
				"reason", reason,
				"request_id", chimw.GetReqID(r.Context()),
			)
			unauthorized(w, reason, "Invalid signature")
			return
		}
		s.metrics.SignatureCheck(metrics.OutcomeOK)

		next.ServeHTTP(w, r)
	})
}
