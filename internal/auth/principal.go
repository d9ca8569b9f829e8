package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
)

// Principal is an entity that can own credentials.
type Principal interface {
	PrincipalKind() string
	PrincipalID() string
}

// OwnerLoader loads the principal with the given id for one owner kind.
// It returns store.ErrNotFound when the principal no longer exists.
type OwnerLoader func(ctx context.Context, id string) (Principal, error)

// OwnerRegistry maps owner kinds to loaders. Safe for concurrent use.
type OwnerRegistry struct {
	mu      sync.RWMutex
	loaders map[string]OwnerLoader
}

func NewOwnerRegistry() *OwnerRegistry {
	return &OwnerRegistry{loaders: make(map[string]OwnerLoader)}
}

// Register installs the loader for kind, replacing any previous one.
func (r *OwnerRegistry) Register(kind string, loader OwnerLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[kind] = loader
}

// Resolve loads the owner of a credential.
func (r *OwnerRegistry) Resolve(ctx context.Context, kind, id string) (Principal, error) {
	r.mu.RLock()
	loader, ok := r.loaders[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOwnerKind, kind)
	}
	return loader(ctx, id)
}

// TenantLoader loads tenants from s.
func TenantLoader(s store.TenantStore) OwnerLoader {
	return func(ctx context.Context, id string) (Principal, error) {
		tenantID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("tenant id %q: %w", id, store.ErrNotFound)
		}
		tenant, err := s.GetTenant(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		return tenant, nil
	}
}

var _ Principal = (*models.Tenant)(nil)
