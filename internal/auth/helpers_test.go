package auth_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/keypair"
	"github.com/arkham-district/secure-tokens/internal/sealed"
	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/internal/token"
	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testIssuerConfig = auth.IssuerConfig{
	SecretPrefix: "sk",
	PublicPrefix: "pk",
	Environment:  "live",
}

type fixture struct {
	store    *countingStore
	box      *sealed.Box
	owners   *auth.OwnerRegistry
	issuer   *auth.Issuer
	resolver *auth.Resolver
	tenant   *models.Tenant
}

func newFixture(t *testing.T, opts ...auth.ResolverOption) *fixture {
	t.Helper()

	box, err := sealed.New(make([]byte, sealed.KeySize))
	require.NoError(t, err)

	s := &countingStore{MemoryStore: store.NewMemoryStore()}
	tenant := &models.Tenant{ID: uuid.New(), Name: "acme", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, s.CreateTenant(context.Background(), tenant))

	owners := auth.NewOwnerRegistry()
	owners.Register(models.OwnerKindTenant, auth.TenantLoader(s))

	return &fixture{
		store:    s,
		box:      box,
		owners:   owners,
		issuer:   auth.NewIssuer(s, box, testIssuerConfig),
		resolver: auth.NewResolver(s, owners, box, opts...),
		tenant:   tenant,
	}
}

// issue mints a credential for the fixture tenant.
func (f *fixture) issue(t *testing.T, params auth.IssueParams) *models.IssuanceResult {
	t.Helper()
	if params.Name == "" {
		params.Name = "test key"
	}
	res, err := f.issuer.Issue(context.Background(), f.tenant, params)
	require.NoError(t, err)
	return res
}

// sign signs body with the secret token the way a client would.
func sign(t *testing.T, secretToken string, body []byte) string {
	t.Helper()
	tok, err := token.Parse(secretToken)
	require.NoError(t, err)
	sig, err := keypair.Sign(body, tok.Key)
	require.NoError(t, err)
	return sig
}

// countingStore counts prefix lookups and can fail lookups or last-used
// writes on demand.
type countingStore struct {
	*store.MemoryStore
	lookups  atomic.Int32
	listErr  error
	touchErr error
}

func (s *countingStore) ListCredentialsByPrefix(ctx context.Context, prefix string) ([]*models.Credential, error) {
	s.lookups.Add(1)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.ListCredentialsByPrefix(ctx, prefix)
}

func (s *countingStore) TouchCredentialLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if s.touchErr != nil {
		return s.touchErr
	}
	return s.MemoryStore.TouchCredentialLastUsed(ctx, id, at)
}
