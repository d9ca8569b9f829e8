package store

import (
	"context"
	"errors"
	"time"

	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// CredentialStore persists credentials. Secret keys arrive already sealed;
// implementations never decrypt, compare, or index them.
type CredentialStore interface {
	InsertCredential(ctx context.Context, cred *models.Credential) error
	ListCredentialsByPrefix(ctx context.Context, prefix string) ([]*models.Credential, error)
	ListCredentialsByOwner(ctx context.Context, ownerKind, ownerID string) ([]*models.Credential, error)
	GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error)
	DeleteCredential(ctx context.Context, id uuid.UUID) error
	TouchCredentialLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
}

// TenantStore persists tenants, the principal type shipped with the server.
type TenantStore interface {
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantByName(ctx context.Context, name string) (*models.Tenant, error)
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	CredentialStore
	TenantStore
}
