// Package auth resolves bearer tokens to credentials and principals, checks
// abilities, verifies signed request bodies, and issues new credentials.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/internal/token"
	"github.com/arkham-district/secure-tokens/pkg/models"
)

const defaultTouchTimeout = 2 * time.Second

// Opener decrypts sealed secret keys. *sealed.Box implements it.
type Opener interface {
	Open(sealed string) ([]byte, error)
}

// Resolution is the outcome of a successful authentication.
type Resolution struct {
	Principal  Principal
	Credential *models.Credential
}

// Resolver maps bearer tokens to credentials. It holds no per-request
// state; use Guard for that.
type Resolver struct {
	store        store.CredentialStore
	owners       *OwnerRegistry
	box          Opener
	now          func() time.Time
	touchTimeout time.Duration
}

type ResolverOption func(*Resolver)

// WithClock overrides time.Now, for expiry tests.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

// WithTouchTimeout bounds the last-used write.
func WithTouchTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.touchTimeout = d }
}

func NewResolver(s store.CredentialStore, owners *OwnerRegistry, box Opener, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		store:        s,
		owners:       owners,
		box:          box,
		now:          time.Now,
		touchTimeout: defaultTouchTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Authenticate resolves bearer to a credential and its owner. Rejections
// are returned as the package's sentinel errors; any other error is an
// infrastructure failure from the store or an owner loader.
func (r *Resolver) Authenticate(ctx context.Context, bearer string) (*Resolution, error) {
	if bearer == "" {
		return nil, ErrNoCredentials
	}
	tok, err := token.Parse(bearer)
	if err != nil {
		return nil, ErrMalformedToken
	}

	candidates, err := r.store.ListCredentialsByPrefix(ctx, tok.Prefix())
	if err != nil {
		return nil, fmt.Errorf("lookup credentials: %w", err)
	}

	cred := r.match(candidates, []byte(tok.Key))
	if cred == nil {
		return nil, ErrUnknownCredential
	}

	now := r.now()
	if cred.Expired(now) {
		return nil, ErrExpired
	}

	r.touch(ctx, cred, now)

	principal, err := r.owners.Resolve(ctx, cred.OwnerKind, cred.OwnerID)
	if err != nil {
		if errors.Is(err, ErrUnknownOwnerKind) || errors.Is(err, store.ErrNotFound) {
			slog.Warn("credential owner not found",
				"credential_id", cred.ID, "owner_kind", cred.OwnerKind, "error", err)
			return nil, ErrUnknownCredential
		}
		return nil, fmt.Errorf("resolve owner: %w", err)
	}

	return &Resolution{Principal: principal, Credential: cred}, nil
}

// match returns the first candidate whose secret equals want. Every
// candidate sharing the prefix is decrypted in turn; ciphertext is
// non-deterministic, so there is nothing to index.
func (r *Resolver) match(candidates []*models.Credential, want []byte) *models.Credential {
	for _, c := range candidates {
		secret, err := r.box.Open(c.SecretKey)
		if err != nil {
			slog.Warn("credential secret cannot be opened", "credential_id", c.ID, "error", err)
			continue
		}
		if subtle.ConstantTimeCompare(secret, want) == 1 {
			return c
		}
	}
	return nil
}

// touch records usage. Failure is logged and otherwise ignored; the write
// outlives request cancellation but not touchTimeout.
func (r *Resolver) touch(ctx context.Context, cred *models.Credential, now time.Time) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.touchTimeout)
	defer cancel()

	if err := r.store.TouchCredentialLastUsed(ctx, cred.ID, now); err != nil {
		slog.Warn("update credential last used failed", "credential_id", cred.ID, "error", err)
		return
	}
	cred.LastUsedAt = &now
}
