package tenant

import (
	"context"

	"github.com/google/uuid"
)

// OperationKind classifies how many tenant partitions one request may touch.
type OperationKind string

const (
	OperationSingleTenant    OperationKind = "single_tenant"
	OperationCrossTenant     OperationKind = "cross_tenant"
	OperationMultiTenantUser OperationKind = "multi_tenant_user"
	OperationGlobal          OperationKind = "global"
)

// RequestContext is the ephemeral per-request tenant decision record.
// It is created by the resolution pipeline, carried on the request context,
// and discarded at request end. Never persisted.
type RequestContext struct {
	PrimaryTenantID      uuid.UUID
	TargetTenantIDs      []uuid.UUID
	Operation            OperationKind
	RequiresGlobalAccess bool
}

// AllTenantIDs returns the primary and target tenant ids, deduplicated,
// primary first.
func (rc *RequestContext) AllTenantIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(rc.TargetTenantIDs)+1)
	out := make([]uuid.UUID, 0, len(rc.TargetTenantIDs)+1)
	if rc.PrimaryTenantID != uuid.Nil {
		seen[rc.PrimaryTenantID] = struct{}{}
		out = append(out, rc.PrimaryTenantID)
	}
	for _, id := range rc.TargetTenantIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type ctxKey string

const (
	tenantKey         ctxKey = "GRADNET_TENANT"
	requestContextKey ctxKey = "GRADNET_TENANT_REQUEST_CONTEXT"
)

// WithTenant returns a derived context carrying the resolved tenant.
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// FromContext extracts the resolved tenant and a boolean indicating presence.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantKey).(*Tenant)
	return t, ok && t != nil
}

// MustFromContext extracts the resolved tenant or panics. Only for handlers
// mounted behind the resolution pipeline.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoTenantInContext)
	}
	return t
}

// WithRequestContext stores the per-request tenant decision record.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// RequestContextFrom extracts the per-request tenant decision record.
func RequestContextFrom(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey).(*RequestContext)
	return rc, ok && rc != nil
}
