package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Severity drives downstream alerting on the audit trail.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Action types emitted by the tenancy core.
const (
	ActionTenantAccess       = "tenant.access"
	ActionCrossTenantAccess  = "tenant.cross_tenant_access"
	ActionGlobalAccess       = "tenant.global_access"
	ActionAccessDenied       = "tenant.access_denied"
	ActionResolutionFailed   = "tenant.resolution_failed"
	ActionTenantInactive     = "tenant.inactive_access_attempt"
	ActionSchemaSwitchFailed = "tenant.schema_switch_failed"
	ActionTenantProvisioned  = "tenant.provisioned"
	ActionMembershipRevoked  = "membership.revoked"
)

// Entry is one append-only audit trail record. Entries are write-once; the
// core exposes no update or delete path.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	ActorID   *uuid.UUID     `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Severity  Severity       `json:"severity"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store is the append-only sink entries are flushed to in batches.
type Store interface {
	AppendBatch(ctx context.Context, entries []Entry) error
}
