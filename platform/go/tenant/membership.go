package tenant

import (
	"context"

	"github.com/google/uuid"
)

// MembershipStatus is the lifecycle state of a user-tenant membership row.
type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipPending MembershipStatus = "pending"
	MembershipRevoked MembershipStatus = "revoked"
)

// Membership joins a global user to a tenant with a permission set. At most
// one row exists per (user, tenant) pair; only active rows grant access.
type Membership struct {
	UserID      uuid.UUID
	TenantID    uuid.UUID
	Status      MembershipStatus
	Permissions []string
}

// HasPermission reports whether the membership grants the named permission.
// The wildcard "*" grants everything.
func (m *Membership) HasPermission(permission string) bool {
	if permission == "" {
		return true
	}
	for _, p := range m.Permissions {
		if p == permission || p == "*" {
			return true
		}
	}
	return false
}

// MembershipDirectory is the persistent membership lookup the access
// validator depends on.
type MembershipDirectory interface {
	FindMembership(ctx context.Context, userID, tenantID uuid.UUID) (*Membership, error)
}

// GlobalUser is the cross-tenant identity record behind a principal.
type GlobalUser struct {
	ID              uuid.UUID
	Email           string
	DefaultTenantID *uuid.UUID
	SuperAdmin      bool
}
