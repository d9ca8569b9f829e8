package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. It enforces the same public key
// uniqueness as the Postgres schema and returns copies, so callers cannot
// mutate stored records.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials []*models.Credential // insertion order
	tenants     map[uuid.UUID]*models.Tenant
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[uuid.UUID]*models.Tenant)}
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) CreateTenant(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tenants {
		if existing.ID == t.ID || existing.Name == t.Name {
			return ErrDuplicateKey
		}
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTenant(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) GetTenantByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) InsertCredential(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.credentials {
		if existing.ID == c.ID || existing.PublicKey == c.PublicKey {
			return ErrDuplicateKey
		}
	}
	s.credentials = append(s.credentials, copyCredential(c))
	return nil
}

func (s *MemoryStore) ListCredentialsByPrefix(_ context.Context, prefix string) ([]*models.Credential, error) {
	return s.filter(func(c *models.Credential) bool { return c.Prefix == prefix }), nil
}

func (s *MemoryStore) ListCredentialsByOwner(_ context.Context, ownerKind, ownerID string) ([]*models.Credential, error) {
	creds := s.filter(func(c *models.Credential) bool {
		return c.OwnerKind == ownerKind && c.OwnerID == ownerID
	})
	slices.Reverse(creds)
	return creds, nil
}

func (s *MemoryStore) GetCredential(_ context.Context, id uuid.UUID) (*models.Credential, error) {
	creds := s.filter(func(c *models.Credential) bool { return c.ID == id })
	if len(creds) == 0 {
		return nil, ErrNotFound
	}
	return creds[0], nil
}

func (s *MemoryStore) DeleteCredential(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.credentials, func(c *models.Credential) bool { return c.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	s.credentials = slices.Delete(s.credentials, i, i+1)
	return nil
}

func (s *MemoryStore) TouchCredentialLastUsed(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.credentials {
		if c.ID == id {
			at := at
			c.LastUsedAt = &at
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) filter(keep func(*models.Credential) bool) []*models.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credential
	for _, c := range s.credentials {
		if keep(c) {
			out = append(out, copyCredential(c))
		}
	}
	return out
}

func copyCredential(c *models.Credential) *models.Credential {
	cp := *c
	cp.Abilities = slices.Clone(c.Abilities)
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		cp.LastUsedAt = &t
	}
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	return &cp
}
