package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/config"
	"github.com/arkham-district/secure-tokens/internal/sealed"
	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/pkg/models"
	"github.com/google/uuid"
)

// backend is what the stateful commands run against.
type backend struct {
	store  store.Store
	tokens *config.TokensConfig
	close  func()
}

// openBackend connects to the configured database and applies migrations.
// Tests replace it.
var openBackend = func(ctx context.Context) (*backend, error) {
	db, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	tokens, err := config.LoadTokens()
	if err != nil {
		return nil, err
	}

	pool, err := store.Connect(ctx, *db)
	if err != nil {
		return nil, err
	}
	return &backend{store: store.NewPostgresStore(pool), tokens: tokens, close: pool.Close}, nil
}

func (b *backend) issuer() (*auth.Issuer, error) {
	box, err := sealed.NewFromBase64(b.tokens.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("create secret box: %w", err)
	}
	return auth.NewIssuer(b.store, box, auth.IssuerConfig{
		SecretPrefix: b.tokens.SecretPrefix,
		PublicPrefix: b.tokens.PublicPrefix,
		Environment:  b.tokens.Environment,
		DefaultTTL:   b.tokens.DefaultTTL,
	}), nil
}

// tenant looks up the tenant called name. With create set, a missing tenant
// is created.
func (b *backend) tenant(ctx context.Context, name string, create bool) (*models.Tenant, error) {
	t, err := b.store.GetTenantByName(ctx, name)
	switch {
	case err == nil:
		return t, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	case !create:
		return nil, fmt.Errorf("tenant %q not found", name)
	}

	now := time.Now().UTC()
	t = &models.Tenant{ID: uuid.New(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := b.store.CreateTenant(ctx, t); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	return t, nil
}
