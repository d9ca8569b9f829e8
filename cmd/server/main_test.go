package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/cache"
	"github.com/arkham-district/secure-tokens/internal/config"
	"github.com/arkham-district/secure-tokens/internal/metrics"
	"github.com/arkham-district/secure-tokens/internal/sealed"
	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="

func testConfig() *config.Config {
	return &config.Config{
		Tokens: config.TokensConfig{
			SecretPrefix:        "sk",
			PublicPrefix:        "pk",
			Environment:         "live",
			AllowedEnvironments: []string{"live", "test"},
			MasterKey:           testMasterKey,
		},
		RateLimit: config.RateLimitConfig{RequestsPerMinute: 60},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (http.Handler, *store.MemoryStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	s := store.NewMemoryStore()
	h, err := newRouter(cfg, s, rc, metrics.New())
	require.NoError(t, err)
	return h, s
}

func issueDirect(t *testing.T, cfg *config.Config, s *store.MemoryStore, owner auth.Principal) *models.IssuanceResult {
	t.Helper()
	box, err := sealed.NewFromBase64(cfg.Tokens.MasterKey)
	require.NoError(t, err)
	issuer := auth.NewIssuer(s, box, auth.IssuerConfig{
		SecretPrefix: cfg.Tokens.SecretPrefix,
		PublicPrefix: cfg.Tokens.PublicPrefix,
		Environment:  cfg.Tokens.Environment,
	})
	res, err := issuer.Issue(context.Background(), owner, auth.IssueParams{Name: "bootstrap"})
	require.NoError(t, err)
	return res
}

// ─── router wiring tests ────────────────────────────────────────────────────

func TestNewRouter_Health(t *testing.T) {
	h, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["database"])
	assert.Equal(t, "ok", services["cache"])
}

func TestNewRouter_IssuesWithConfiguredPrefixes(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.SecretPrefix = "secret"
	cfg.Tokens.PublicPrefix = "public"
	cfg.Tokens.Environment = "test"
	cfg.Tokens.DefaultTTL = time.Hour
	h, s := newTestRouter(t, cfg)

	tenant := &models.Tenant{ID: uuid.New(), Name: "acme"}
	require.NoError(t, s.CreateTenant(context.Background(), tenant))
	bootstrap := issueDirect(t, cfg, s, tenant)

	req := httptest.NewRequest("POST", "/api/v1/credentials", strings.NewReader(`{"name":"child"}`))
	req.Header.Set("Authorization", "Bearer "+bootstrap.SecretKey)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Data models.IssuanceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.Data.SecretKey, "secret_test_"))
	assert.True(t, strings.HasPrefix(body.Data.PublicKey, "public_test_"))
	require.NotNil(t, body.Data.Credential.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *body.Data.Credential.ExpiresAt, time.Minute)
}

func TestNewRouter_Metrics(t *testing.T) {
	h, _ := newTestRouter(t, testConfig())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewRouter_BadMasterKey(t *testing.T) {
	cfg := testConfig()
	cfg.Tokens.MasterKey = "c2hvcnQ="

	_, err := newRouter(cfg, store.NewMemoryStore(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret box")
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	// Clear all env vars that config.Load() requires
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "TOKENS_MASTER_KEY"} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "not-a-valid-url")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("TOKENS_MASTER_KEY", testMasterKey)

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect database")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
