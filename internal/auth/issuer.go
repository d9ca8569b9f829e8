package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arkham-district/secure-tokens/internal/keypair"
	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/internal/token"
	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
)

// maxIssueAttempts bounds retries on a public key collision.
const maxIssueAttempts = 3

// ErrInvalidIssue is returned for issuance parameters that cannot produce a
// usable credential.
var ErrInvalidIssue = errors.New("auth: invalid issuance request")

// Sealer encrypts secret keys for storage. *sealed.Box implements it.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
}

// IssuerConfig fixes the token prefixes and environment for new credentials.
type IssuerConfig struct {
	SecretPrefix string
	PublicPrefix string
	Environment  string
	DefaultTTL   time.Duration // zero means credentials never expire by default
}

// IssueParams describes a new credential. Empty Abilities means
// unrestricted.
type IssueParams struct {
	Name      string
	Abilities []string
	ExpiresAt *time.Time
}

// CredentialOwner is the credential capability every principal gets through
// Issuer.For.
type CredentialOwner interface {
	ListCredentials(ctx context.Context) ([]*models.Credential, error)
	IssueCredential(ctx context.Context, params IssueParams) (*models.IssuanceResult, error)
	DeleteCredential(ctx context.Context, id uuid.UUID) error
}

// Issuer mints credentials.
type Issuer struct {
	store store.CredentialStore
	box   Sealer
	cfg   IssuerConfig
	now   func() time.Time
}

func NewIssuer(s store.CredentialStore, box Sealer, cfg IssuerConfig) *Issuer {
	return &Issuer{store: s, box: box, cfg: cfg, now: time.Now}
}

// Issue creates and stores a credential owned by owner. The returned
// result is the only copy of the full secret token.
func (i *Issuer) Issue(ctx context.Context, owner Principal, params IssueParams) (*models.IssuanceResult, error) {
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidIssue)
	}
	now := i.now().UTC()
	expiresAt := params.ExpiresAt
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidIssue)
	}
	if expiresAt == nil && i.cfg.DefaultTTL > 0 {
		t := now.Add(i.cfg.DefaultTTL)
		expiresAt = &t
	}

	for attempt := 1; ; attempt++ {
		kp, err := keypair.GeneratePrefixed(i.cfg.SecretPrefix, i.cfg.PublicPrefix, i.cfg.Environment)
		if err != nil {
			return nil, err
		}
		sealedSecret, err := i.box.Seal([]byte(kp.RawSecretKey))
		if err != nil {
			return nil, fmt.Errorf("seal secret key: %w", err)
		}

		cred := &models.Credential{
			ID:        uuid.New(),
			OwnerKind: owner.PrincipalKind(),
			OwnerID:   owner.PrincipalID(),
			Name:      name,
			Prefix:    token.Prefix(i.cfg.SecretPrefix, i.cfg.Environment),
			SecretKey: sealedSecret,
			PublicKey: kp.RawPublicKey,
			Abilities: normalizeAbilities(params.Abilities),
			ExpiresAt: expiresAt,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = i.store.InsertCredential(ctx, cred)
		if errors.Is(err, store.ErrDuplicateKey) && attempt < maxIssueAttempts {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert credential: %w", err)
		}

		return &models.IssuanceResult{
			Credential: cred,
			SecretKey:  kp.SecretKey,
			PublicKey:  kp.PublicKey,
		}, nil
	}
}

// For returns the credential capability of owner.
func (i *Issuer) For(owner Principal) CredentialOwner {
	return &ownedCredentials{issuer: i, owner: owner}
}

type ownedCredentials struct {
	issuer *Issuer
	owner  Principal
}

func (o *ownedCredentials) ListCredentials(ctx context.Context) ([]*models.Credential, error) {
	return o.issuer.store.ListCredentialsByOwner(ctx, o.owner.PrincipalKind(), o.owner.PrincipalID())
}

func (o *ownedCredentials) IssueCredential(ctx context.Context, params IssueParams) (*models.IssuanceResult, error) {
	return o.issuer.Issue(ctx, o.owner, params)
}

// DeleteCredential revokes one of the owner's credentials. Credentials of
// other owners are reported as store.ErrNotFound.
func (o *ownedCredentials) DeleteCredential(ctx context.Context, id uuid.UUID) error {
	cred, err := o.issuer.store.GetCredential(ctx, id)
	if err != nil {
		return err
	}
	if cred.OwnerKind != o.owner.PrincipalKind() || cred.OwnerID != o.owner.PrincipalID() {
		return store.ErrNotFound
	}
	return o.issuer.store.DeleteCredential(ctx, id)
}

// normalizeAbilities trims and de-duplicates, keeping first-seen order. No
// abilities means unrestricted.
func normalizeAbilities(in []string) models.Abilities {
	seen := make(map[string]bool, len(in))
	var out models.Abilities
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	if len(out) == 0 {
		return models.AllAbilities()
	}
	return out
}
