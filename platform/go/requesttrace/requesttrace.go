package requesttrace

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	platformauth "github.com/gradnet-io/gradnet/platform/go/auth"
)

type contextKey string

const (
	ctxAuditInfo contextKey = "GRADNET_REQUEST_TRACE"
)

// ActorKind represents who initiated a request.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// AuditInfo captures request-scoped metadata needed for traceability and the
// audit trail detail payload. ActorID is set only when ActorKind is user.
type AuditInfo struct {
	ActorKind ActorKind
	ActorID   *uuid.UUID
	RequestID string
	Method    string
	Path      string
	RemoteIP  string
	UserAgent string
}

// Detail renders the structured audit payload for this request.
func (a AuditInfo) Detail() map[string]any {
	detail := map[string]any{
		"method": a.Method,
		"path":   a.Path,
	}
	if a.RequestID != "" {
		detail["request_id"] = a.RequestID
	}
	if a.RemoteIP != "" {
		detail["ip"] = a.RemoteIP
	}
	if a.UserAgent != "" {
		detail["user_agent"] = a.UserAgent
	}
	return detail
}

// IntoContext stores the AuditInfo in the provided context.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxAuditInfo, audit)
}

// FromContext extracts the AuditInfo from context, returning false when not present.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	v := ctx.Value(ctxAuditInfo)
	if v == nil {
		return AuditInfo{}, false
	}

	audit, ok := v.(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous returns the AuditInfo stored on the context, or an
// anonymous record when absent.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// FromRequest builds an AuditInfo from the authenticated principal (when
// present) and the request's transport metadata.
func FromRequest(r *http.Request, requestID string) AuditInfo {
	info := AuditInfo{
		ActorKind: ActorKindAnonymous,
		RequestID: requestID,
		Method:    r.Method,
		Path:      r.URL.Path,
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}

	if principal, ok := platformauth.PrincipalFromContext(r.Context()); ok && principal != nil {
		info.ActorKind = ActorKindUser
		id := principal.ID
		info.ActorID = &id
	}

	return info
}

// FromPrincipal builds an AuditInfo from authenticated credentials alone.
// Returns an error when the principal is nil.
func FromPrincipal(principal *platformauth.Principal, requestID string) (AuditInfo, error) {
	if principal == nil {
		return AuditInfo{}, errors.New("principal is required to build audit info")
	}

	id := principal.ID
	return AuditInfo{
		ActorKind: ActorKindUser,
		ActorID:   &id,
		RequestID: requestID,
	}, nil
}

// Anonymous builds an AuditInfo for unauthenticated requests.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds an AuditInfo for background/system operations.
func System(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, RequestID: requestID}
}
