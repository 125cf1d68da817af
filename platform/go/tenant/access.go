package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/gradnet-io/gradnet/platform/go/auth"
)

// DefaultMaxCrossTenantTargets caps how many distinct tenant partitions one
// cross-tenant request may address.
const DefaultMaxCrossTenantTargets = 10

// Decision is the discriminated result of access validation. Denials are
// normal outcomes; the reason is meant for audit logs, not end users.
type Decision struct {
	Allowed          bool
	Reason           string
	FailedTenantID   uuid.UUID
	ValidatedTenants []uuid.UUID
}

func allow(validated []uuid.UUID) Decision {
	return Decision{Allowed: true, ValidatedTenants: validated}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

func denyTenant(tenantID uuid.UUID, reason string) Decision {
	return Decision{Allowed: false, Reason: reason, FailedTenantID: tenantID}
}

// Validator checks membership, status and permission of the acting principal
// against the tenants a request addresses.
type Validator struct {
	memberships MembershipDirectory
	maxTargets  int
}

// ValidatorConfig carries the validator dependencies.
type ValidatorConfig struct {
	Memberships MembershipDirectory
	// MaxCrossTenantTargets defaults to DefaultMaxCrossTenantTargets when
	// zero or negative.
	MaxCrossTenantTargets int
}

// NewValidator constructs a Validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.Memberships == nil {
		panic("access validator: membership directory is required")
	}
	maxTargets := cfg.MaxCrossTenantTargets
	if maxTargets <= 0 {
		maxTargets = DefaultMaxCrossTenantTargets
	}
	return &Validator{memberships: cfg.Memberships, maxTargets: maxTargets}
}

// MaxTargets reports the cross-tenant target ceiling. Callers that resolve
// target identifiers can reject oversized lists before paying for lookups.
func (v *Validator) MaxTargets() int { return v.maxTargets }

// Validate branches on the request's operation kind. A non-nil error is
// returned only for genuine failures (membership store unreachable); denial
// is a Decision value.
func (v *Validator) Validate(ctx context.Context, principal *auth.Principal, rc *RequestContext, requiredPermission string) (Decision, error) {
	if principal == nil {
		return deny("unauthenticated"), nil
	}

	switch rc.Operation {
	case OperationGlobal:
		if !principal.SuperAdmin {
			return deny("global operations require super-admin privilege"), nil
		}
		return allow(nil), nil

	case OperationCrossTenant, OperationMultiTenantUser:
		if !principal.GlobalUser {
			return deny("cross-tenant operations require a global user"), nil
		}
		// Cheap rejection before any membership lookup.
		if n := len(dedupe(rc.TargetTenantIDs)); n > v.maxTargets {
			return deny(fmt.Sprintf("cross-tenant request names %d tenants, limit is %d", n, v.maxTargets)), nil
		}
		return v.checkMemberships(ctx, principal, rc.AllTenantIDs(), requiredPermission)

	default: // single tenant
		if !principal.GlobalUser {
			// Principals without multi-tenant membership semantics are scoped
			// to their home tenant by the surrounding application.
			return allow(nil), nil
		}
		return v.checkMemberships(ctx, principal, []uuid.UUID{rc.PrimaryTenantID}, requiredPermission)
	}
}

func (v *Validator) checkMemberships(ctx context.Context, principal *auth.Principal, tenantIDs []uuid.UUID, requiredPermission string) (Decision, error) {
	validated := make([]uuid.UUID, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		m, err := v.memberships.FindMembership(ctx, principal.ID, tenantID)
		if err != nil {
			if errors.Is(err, ErrMembershipNotFound) {
				return denyTenant(tenantID, fmt.Sprintf("no membership in tenant %s", tenantID)), nil
			}
			return Decision{}, fmt.Errorf("lookup membership for tenant %s: %w", tenantID, err)
		}
		if m.Status != MembershipActive {
			return denyTenant(tenantID, fmt.Sprintf("membership in tenant %s is %s", tenantID, m.Status)), nil
		}
		if !m.HasPermission(requiredPermission) {
			return denyTenant(tenantID, fmt.Sprintf("membership in tenant %s lacks the %q permission", tenantID, requiredPermission)), nil
		}
		validated = append(validated, tenantID)
	}
	return allow(validated), nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
