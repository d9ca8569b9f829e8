package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Wildcard is the ability that grants every other ability.
const Wildcard = "*"

// Abilities is a flat set of scope strings. The singleton {"*"} is the
// unrestricted sentinel.
type Abilities []string

// AllAbilities returns the unrestricted sentinel.
func AllAbilities() Abilities { return Abilities{Wildcard} }

// Unrestricted reports whether a is exactly the wildcard singleton.
func (a Abilities) Unrestricted() bool {
	return len(a) == 1 && a[0] == Wildcard
}

// Has reports whether ability is granted. Matching is exact string
// membership; there is no prefix or glob matching.
func (a Abilities) Has(ability string) bool {
	if a.Unrestricted() {
		return true
	}
	return slices.Contains(a, ability)
}

// Credential is a persisted asymmetric keypair record. SecretKey holds the
// sealed ciphertext of the raw secret key and is never exposed in JSON.
type Credential struct {
	ID         uuid.UUID  `db:"id"           json:"id"`
	OwnerKind  string     `db:"owner_kind"   json:"owner_kind"`
	OwnerID    string     `db:"owner_id"     json:"owner_id"`
	Name       string     `db:"name"         json:"name"`
	Prefix     string     `db:"prefix"       json:"prefix"`
	SecretKey  string     `db:"secret_key"   json:"-"`
	PublicKey  string     `db:"public_key"   json:"public_key"`
	Abilities  Abilities  `db:"abilities"    json:"abilities"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `db:"expires_at"   json:"expires_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"   json:"updated_at"`
}

// Expired reports whether the credential is past its expiry at now. A
// credential without ExpiresAt never expires.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !now.Before(*c.ExpiresAt)
}

// IssuanceResult is returned once, at creation. It is the only place the
// full secret token exists in plaintext.
type IssuanceResult struct {
	Credential *Credential `json:"credential"`
	SecretKey  string      `json:"secret_key"`
	PublicKey  string      `json:"public_key"`
}
