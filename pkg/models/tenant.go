package models

import (
	"time"

	"github.com/google/uuid"
)

// OwnerKindTenant is the owner kind under which tenants hold credentials.
const OwnerKindTenant = "tenant"

// Tenant represents an organization or team. Tenants are the principal type
// shipped with the server; credentials reference them by OwnerKindTenant.
type Tenant struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PrincipalKind implements auth.Principal.
func (t *Tenant) PrincipalKind() string { return OwnerKindTenant }

// PrincipalID implements auth.Principal.
func (t *Tenant) PrincipalID() string { return t.ID.String() }
