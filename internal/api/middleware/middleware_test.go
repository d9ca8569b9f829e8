package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	mw "github.com/arkham-district/secure-tokens/internal/api/middleware"
	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/keypair"
	"github.com/arkham-district/secure-tokens/internal/metrics"
	"github.com/arkham-district/secure-tokens/internal/sealed"
	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/internal/token"
	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Cache ---

type mockCache struct {
	counter int64
	ttl     time.Duration
	err     error
	keys    []string
}

func (m *mockCache) Ping(_ context.Context) error { return nil }
func (m *mockCache) IncrWithExpiry(_ context.Context, key string, expiry time.Duration) (int64, time.Duration, error) {
	m.keys = append(m.keys, key)
	m.counter++
	ttl := m.ttl
	if ttl == 0 {
		ttl = expiry
	}
	return m.counter, ttl, m.err
}

// --- Failing store ---

type failingStore struct {
	*store.MemoryStore
}

func (s *failingStore) ListCredentialsByPrefix(_ context.Context, _ string) ([]*models.Credential, error) {
	return nil, errors.New("connection refused")
}

// --- helpers ---

type env struct {
	store    *store.MemoryStore
	resolver *auth.Resolver
	issuer   *auth.Issuer
	tenant   *models.Tenant
}

func newEnv(t *testing.T) *env {
	t.Helper()
	box, err := sealed.New(make([]byte, sealed.KeySize))
	require.NoError(t, err)

	s := store.NewMemoryStore()
	tenant := &models.Tenant{ID: uuid.New(), Name: "acme"}
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	owners := auth.NewOwnerRegistry()
	owners.Register(models.OwnerKindTenant, auth.TenantLoader(s))

	return &env{
		store:    s,
		resolver: auth.NewResolver(s, owners, box),
		issuer: auth.NewIssuer(s, box, auth.IssuerConfig{
			SecretPrefix: "sk", PublicPrefix: "pk", Environment: "live",
		}),
		tenant: tenant,
	}
}

func (e *env) issue(t *testing.T, abilities ...string) *models.IssuanceResult {
	t.Helper()
	res, err := e.issuer.Issue(context.Background(), e.tenant, auth.IssueParams{Name: "test", Abilities: abilities})
	require.NoError(t, err)
	return res
}

func okHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

func bearer(req *http.Request, tok string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func errBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"].(map[string]any)
}

func signBody(t *testing.T, secretToken string, body []byte) string {
	t.Helper()
	tok, err := token.Parse(secretToken)
	require.NoError(t, err)
	sig, err := keypair.Sign(body, tok.Key)
	require.NoError(t, err)
	return sig
}

// ========================================
// Auth Middleware Tests
// ========================================

func TestAuth_Rejections(t *testing.T) {
	e := newEnv(t)
	a := mw.NewAuth(e.resolver, metrics.New())

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", "NoCredentials"},
		{"basic scheme", "Basic abc123", "NoCredentials"},
		{"malformed token", "Bearer not-a-token", "MalformedToken"},
		{"unknown credential", "Bearer sk_live_totallybogus", "UnknownCredential"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			a.Authenticate(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			body := errBody(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, "Invalid credentials", body["message"])
		})
	}
}

func TestAuth_Expired(t *testing.T) {
	e := newEnv(t)
	expiresAt := time.Now().Add(time.Hour)
	res, err := e.issuer.Issue(context.Background(), e.tenant, auth.IssueParams{Name: "short", ExpiresAt: &expiresAt})
	require.NoError(t, err)

	owners := auth.NewOwnerRegistry()
	owners.Register(models.OwnerKindTenant, auth.TenantLoader(e.store))
	box, err := sealed.New(make([]byte, sealed.KeySize))
	require.NoError(t, err)
	later := auth.NewResolver(e.store, owners, box, auth.WithClock(func() time.Time { return expiresAt.Add(time.Second) }))

	w := httptest.NewRecorder()
	mw.NewAuth(later, nil).Authenticate(okHandler()).ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), res.SecretKey))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Expired", errBody(t, w)["code"])
}

func TestAuth_StoreFailure(t *testing.T) {
	e := newEnv(t)
	box, err := sealed.New(make([]byte, sealed.KeySize))
	require.NoError(t, err)
	r := auth.NewResolver(&failingStore{MemoryStore: e.store}, auth.NewOwnerRegistry(), box)

	w := httptest.NewRecorder()
	mw.NewAuth(r, nil).Authenticate(okHandler()).ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), "sk_live_abc"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestAuth_ValidKey(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	a := mw.NewAuth(e.resolver, nil)

	var principal auth.Principal
	var cred *models.Credential
	handler := a.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g, ok := mw.GetGuard(r)
		require.True(t, ok)
		p, err := g.Authenticate(r.Context())
		require.NoError(t, err)
		principal = p
		cred = g.Credential(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, principal)
	assert.Equal(t, e.tenant.ID.String(), principal.PrincipalID())
	require.NotNil(t, cred)
	assert.Equal(t, issued.Credential.ID, cred.ID)
}

func TestAuth_RequireAbility_Allowed(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t, "credentials:write")
	a := mw.NewAuth(e.resolver, nil)

	handler := a.Authenticate(a.RequireAbility("credentials:write")(okHandler()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("POST", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RequireAbility_Wildcard(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	a := mw.NewAuth(e.resolver, nil)

	handler := a.Authenticate(a.RequireAbility("credentials:write")(okHandler()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("POST", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RequireAbility_Denied(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t, "payments:read")
	a := mw.NewAuth(e.resolver, nil)

	handler := a.Authenticate(a.RequireAbility("credentials:write")(okHandler()))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("POST", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errBody(t, w)["code"])
}

func TestAuth_RequireAbility_WithoutAuth(t *testing.T) {
	e := newEnv(t)
	a := mw.NewAuth(e.resolver, nil)

	w := httptest.NewRecorder()
	a.RequireAbility("credentials:write")(okHandler()).ServeHTTP(w, httptest.NewRequest("POST", "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NoCredentials", errBody(t, w)["code"])
}

// ========================================
// Signature Middleware Tests
// ========================================

func TestSignature(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	other := e.issue(t)
	body := `{"amount":100}`

	tests := []struct {
		name      string
		signature string
		body      string
		wantCode  int
		wantError string
	}{
		{"valid", signBody(t, issued.SecretKey, []byte(body)), body, http.StatusOK, ""},
		{"missing header", "", body, http.StatusUnauthorized, "MissingSignatureHeader"},
		{"foreign signature", signBody(t, other.SecretKey, []byte(body)), body, http.StatusUnauthorized, "InvalidSignature"},
		{"tampered body", signBody(t, issued.SecretKey, []byte(body)), `{"amount":1000}`, http.StatusUnauthorized, "InvalidSignature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				b, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				seen = string(b)
				w.WriteHeader(http.StatusOK)
			})
			handler := mw.NewAuth(e.resolver, nil).Authenticate(mw.NewSignature(nil).Verify(next))

			req := bearer(httptest.NewRequest("POST", "/verify", strings.NewReader(tt.body)), issued.SecretKey)
			if tt.signature != "" {
				req.Header.Set(mw.SignatureHeader, tt.signature)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantError == "" {
				assert.Equal(t, tt.body, seen)
				return
			}
			body := errBody(t, w)
			assert.Equal(t, tt.wantError, body["code"])
			assert.Equal(t, "Invalid signature", body["message"])
		})
	}
}

func TestSignature_WithoutAuth(t *testing.T) {
	req := httptest.NewRequest("POST", "/verify", strings.NewReader("{}"))
	req.Header.Set(mw.SignatureHeader, "c2ln")
	w := httptest.NewRecorder()
	mw.NewSignature(nil).Verify(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "NoCredentials", errBody(t, w)["code"])
}

// ========================================
// Rate Limit Middleware Tests
// ========================================

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	c := &mockCache{}
	handler := mw.NewAuth(e.resolver, nil).Authenticate(mw.NewRateLimit(c, 5, nil).Limit(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, []string{"ratelimit:credential:" + issued.Credential.ID.String()}, c.keys)
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	c := &mockCache{counter: 5}
	handler := mw.NewAuth(e.resolver, nil).Authenticate(mw.NewRateLimit(c, 5, metrics.New()).Limit(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", errBody(t, w)["code"])
}

func TestRateLimit_HeadersFollowWindow(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	c := &mockCache{counter: 5, ttl: 14200 * time.Millisecond}
	handler := mw.NewAuth(e.resolver, nil).Authenticate(mw.NewRateLimit(c, 5, nil).Limit(okHandler()))

	before := time.Now()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "15", w.Header().Get("Retry-After"))

	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, before.Add(14200*time.Millisecond).Unix(), reset, 1)
}

func TestRateLimit_MissingTTLAssumesFullWindow(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	c := &mockCache{counter: 5, ttl: -1}
	handler := mw.NewAuth(e.resolver, nil).Authenticate(mw.NewRateLimit(c, 5, nil).Limit(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), issued.SecretKey))

	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimit_FailsOpen(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	c := &mockCache{err: errors.New("redis down")}
	handler := mw.NewAuth(e.resolver, nil).Authenticate(mw.NewRateLimit(c, 5, nil).Limit(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), issued.SecretKey))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_NoGuard_PassThrough(t *testing.T) {
	c := &mockCache{}
	w := httptest.NewRecorder()
	mw.NewRateLimit(c, 5, nil).Limit(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, c.keys)
}

func TestRateLimit_InjectedPrincipal_PassThrough(t *testing.T) {
	e := newEnv(t)
	g := e.resolver.Guard("")
	g.SetPrincipal(e.tenant)
	c := &mockCache{}

	req := httptest.NewRequest("GET", "/test", nil)
	req = req.WithContext(auth.NewContext(req.Context(), g))
	w := httptest.NewRecorder()
	mw.NewRateLimit(c, 5, nil).Limit(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, c.keys)
}

func TestNewRateLimit_DefaultLimit(t *testing.T) {
	e := newEnv(t)
	issued := e.issue(t)
	handler := mw.NewAuth(e.resolver, nil).Authenticate(mw.NewRateLimit(&mockCache{}, 0, nil).Limit(okHandler()))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, bearer(httptest.NewRequest("GET", "/test", nil), issued.SecretKey))

	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
}

// ========================================
// Recovery / Logger Tests
// ========================================

func TestRecovery_CatchesPanic(t *testing.T) {
	handler := mw.Recovery(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", errBody(t, w)["code"])
}

func TestRecovery_ReraisesAbort(t *testing.T) {
	handler := mw.Recovery(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/test", nil))
	})
}

func TestRecovery_NoPanic(t *testing.T) {
	w := httptest.NewRecorder()
	mw.Recovery(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestLogger_PassesStatus(t *testing.T) {
	handler := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestInstrument_NilMetrics(t *testing.T) {
	w := httptest.NewRecorder()
	mw.Instrument(nil)(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}
