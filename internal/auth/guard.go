package auth

import (
	"context"
	"sync"

	"github.com/arkham-district/secure-tokens/pkg/models"
)

type guardState int

const (
	unresolved guardState = iota
	resolved
	rejected
)

// Guard holds the authentication state of one inbound request. It starts
// unresolved and moves once to resolved or rejected; the outcome is cached
// for the Guard's lifetime. Build a new Guard per request.
type Guard struct {
	resolver *Resolver
	bearer   string

	mu         sync.Mutex
	state      guardState
	principal  Principal
	credential *models.Credential
	err        error
}

// Guard returns an unresolved Guard for a request carrying bearer.
func (r *Resolver) Guard(bearer string) *Guard {
	return &Guard{resolver: r, bearer: bearer}
}

// Authenticate resolves the request's principal on first call and returns
// the cached outcome afterwards. Infrastructure errors are not cached, so
// a later call may retry.
func (g *Guard) Authenticate(ctx context.Context) (Principal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolveLocked(ctx)
}

func (g *Guard) resolveLocked(ctx context.Context) (Principal, error) {
	switch g.state {
	case resolved:
		return g.principal, nil
	case rejected:
		return nil, g.err
	}

	res, err := g.resolver.Authenticate(ctx, g.bearer)
	if err != nil {
		if IsRejection(err) {
			g.state = rejected
			g.err = err
		}
		return nil, err
	}
	g.state = resolved
	g.principal = res.Principal
	g.credential = res.Credential
	return g.principal, nil
}

// Credential resolves if needed and returns the matched credential, or nil
// when the request is rejected or its principal was injected.
func (g *Guard) Credential(ctx context.Context) *models.Credential {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.resolveLocked(ctx); err != nil {
		return nil
	}
	return g.credential
}

// SetPrincipal injects p for trusted internal callers, bypassing token
// resolution. Later Authenticate calls return p.
func (g *Guard) SetPrincipal(p Principal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = resolved
	g.principal = p
	g.credential = nil
	g.err = nil
}

// HasPrincipal reports whether a principal is resolved, without resolving.
func (g *Guard) HasPrincipal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == resolved
}

// Can reports whether the request may exercise ability. An injected
// principal has no credential and is not restricted.
func (g *Guard) Can(ctx context.Context, ability string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, err := g.resolveLocked(ctx); err != nil {
		return false
	}
	if g.credential == nil {
		return true
	}
	return Can(g.credential, ability)
}

type guardKey struct{}

// NewContext returns a copy of ctx carrying g.
func NewContext(ctx context.Context, g *Guard) context.Context {
	return context.WithValue(ctx, guardKey{}, g)
}

// FromContext returns the Guard stored by NewContext.
func FromContext(ctx context.Context) (*Guard, bool) {
	g, ok := ctx.Value(guardKey{}).(*Guard)
	return g, ok && g != nil
}
