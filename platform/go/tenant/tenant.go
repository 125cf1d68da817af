package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Errors returned by directory lookups and status validation.
var (
	ErrNotFound             = errors.New("tenant not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrGlobalUserNotFound   = errors.New("global user not found")
	ErrInvalidIdentifier    = errors.New("invalid tenant identifier")
	ErrNoTenantInContext    = errors.New("no tenant in context")
	ErrSchemaNotProvisioned = errors.New("tenant schema not provisioned")
)

// Status is the lifecycle state of a tenant registry entry.
type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

// StatusFromString converts a stored string to Status; defaults to inactive on unknown.
func StatusFromString(s string) Status {
	switch Status(s) {
	case StatusActive, StatusInactive, StatusSuspended:
		return Status(s)
	default:
		return StatusInactive
	}
}

// IdentifierKind names the request signal a tenant identifier was derived from.
type IdentifierKind string

const (
	IdentifierSubdomain IdentifierKind = "subdomain"
	IdentifierDomain    IdentifierKind = "domain"
	IdentifierSlug      IdentifierKind = "slug"
)

// Tenant is the registry entry for one isolated customer partition.
// Provisioning writes it; the resolution pipeline only reads it.
type Tenant struct {
	ID                 uuid.UUID
	Name               string
	Subdomain          string
	CustomDomain       string
	Slug               string
	SchemaName         string
	Status             Status
	SubscriptionActive bool
	SchemaReady        bool
}

// InactiveReason explains why a found tenant cannot serve requests.
// Empty string means the tenant is serviceable.
func (t *Tenant) InactiveReason(requireSubscription bool) string {
	switch {
	case t.Status != StatusActive:
		return "tenant status is " + string(t.Status)
	case !t.SchemaReady:
		return "tenant schema is not provisioned"
	case requireSubscription && !t.SubscriptionActive:
		return "tenant subscription is not active"
	default:
		return ""
	}
}

// Directory is the persistent identifier lookup the resolver depends on.
// Implemented by the tenant registry store.
type Directory interface {
	FindByIdentifier(ctx context.Context, identifier string, kind IdentifierKind) (*Tenant, error)
}
