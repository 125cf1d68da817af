// Package middleware wires tenant resolution, access validation, and schema
// switching into a single chi middleware. Every request that reaches a domain
// handler has, by construction, a resolved tenant (or validated global scope),
// a validated principal, and a connection whose search path points at the
// tenant's partition. The reset back to the default partition is deferred, so
// it runs on every exit path including panics.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradnet-io/gradnet/platform/go/audit"
	platformauth "github.com/gradnet-io/gradnet/platform/go/auth"
	"github.com/gradnet-io/gradnet/platform/go/requesttrace"
	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

const (
	// DefaultTargetsHeader names the additional tenants a cross-tenant
	// request wants to read, as a comma-separated list of slugs.
	DefaultTargetsHeader = "X-Tenant-Targets"

	headerTenantID     = "X-Tenant-ID"
	headerTenantName   = "X-Tenant-Name"
	headerTenantSchema = "X-Tenant-Schema"
)

// Config controls the tenancy pipeline.
type Config struct {
	Resolver  *tenant.Resolver
	Validator *tenant.Validator
	Registry  *tenant.RouteRegistry
	Switcher  tenant.SchemaSwitcher
	// Directory resolves cross-tenant target slugs to tenant records.
	Directory tenant.Directory
	Auditor   *audit.Logger
	Logger    *zap.Logger
	// SkipPaths are matched by prefix and bypass the pipeline entirely
	// (health probes, metrics).
	SkipPaths []string
	// TargetsHeader defaults to DefaultTargetsHeader.
	TargetsHeader string
	// SessionCookie, when set, is refreshed with the resolved tenant's slug
	// so later requests can fall back to session resolution.
	SessionCookie string
	// HitCounter, when set, increments a per-tenant counter on every
	// successful resolution. Optional.
	HitCounter tenant.Cache
}

// Pipeline is the per-request tenancy middleware. BindRoutes must be called
// with the fully assembled router before the first request is served.
type Pipeline struct {
	cfg    Config
	routes chi.Routes
}

// NewPipeline validates the configuration and returns an unbound pipeline.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Resolver == nil {
		panic("tenant middleware: resolver is required")
	}
	if cfg.Validator == nil {
		panic("tenant middleware: validator is required")
	}
	if cfg.Registry == nil {
		panic("tenant middleware: route registry is required")
	}
	if cfg.Switcher == nil {
		panic("tenant middleware: schema switcher is required")
	}
	if cfg.Directory == nil {
		panic("tenant middleware: directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.TargetsHeader == "" {
		cfg.TargetsHeader = DefaultTargetsHeader
	}
	return &Pipeline{cfg: cfg}
}

// BindRoutes hands the pipeline the router it classifies requests against.
// The router cannot be passed at construction time because the pipeline is
// itself mounted on it.
func (p *Pipeline) BindRoutes(routes chi.Routes) {
	p.routes = routes
}

// Middleware returns the chi middleware function.
func (p *Pipeline) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.serve(next, w, r)
		})
	}
}

func (p *Pipeline) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	for _, prefix := range p.cfg.SkipPaths {
		if strings.HasPrefix(r.URL.Path, prefix) {
			next.ServeHTTP(w, r)
			return
		}
	}

	ctx := r.Context()
	kind := p.cfg.Registry.Classify(p.routes, r)
	principal, _ := platformauth.PrincipalFromContext(ctx)
	trace := requesttrace.FromContextOrAnonymous(ctx)

	if kind.Class == tenant.RouteGlobal {
		p.serveGlobal(next, w, r, kind, principal, trace)
		return
	}

	outcome, err := p.cfg.Resolver.Resolve(ctx, r)
	if err != nil {
		p.cfg.Logger.Error("tenant resolution failed", zap.Error(err))
		p.emit(audit.ActionResolutionFailed, audit.SeverityMedium, trace, map[string]any{
			"error": err.Error(),
		})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	switch outcome.Kind {
	case tenant.OutcomeNotFound:
		http.Error(w, "tenant not found", http.StatusNotFound)
		return
	case tenant.OutcomeInactive:
		p.emit(audit.ActionTenantInactive, audit.SeverityMedium, trace, map[string]any{
			"tenant_id": outcome.Tenant.ID.String(),
			"reason":    outcome.Reason,
		})
		http.Error(w, "tenant access unavailable", http.StatusForbidden)
		return
	}

	t := outcome.Tenant
	rc := &tenant.RequestContext{
		PrimaryTenantID: t.ID,
		Operation:       kind.Operation(),
	}

	if kind.Class == tenant.RouteCrossTenant || kind.Class == tenant.RouteMultiTenantUser {
		targets, status, msg := p.resolveTargets(r, t.ID)
		if status != 0 {
			http.Error(w, msg, status)
			return
		}
		rc.TargetTenantIDs = targets
	}

	decision, err := p.cfg.Validator.Validate(ctx, principal, rc, kind.Permission)
	if err != nil {
		p.cfg.Logger.Error("access validation failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !decision.Allowed {
		// The denial reason goes to the audit trail, never to the caller.
		detail := trace.Detail()
		detail["tenant_id"] = t.ID.String()
		detail["reason"] = decision.Reason
		if decision.FailedTenantID != uuid.Nil {
			detail["failed_tenant_id"] = decision.FailedTenantID.String()
		}
		p.emit(audit.ActionAccessDenied, audit.SeverityMedium, trace, detail)
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	session, err := p.cfg.Switcher.Acquire(ctx)
	if err != nil {
		p.cfg.Logger.Error("schema session acquire failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer session.Release()

	if err := session.SwitchTo(ctx, t); err != nil {
		p.cfg.Logger.Error("schema switch failed",
			zap.String("tenant_id", t.ID.String()),
			zap.String("schema", t.SchemaName),
			zap.Error(err))
		p.emit(audit.ActionSchemaSwitchFailed, audit.SeverityCritical, trace, map[string]any{
			"tenant_id": t.ID.String(),
			"schema":    t.SchemaName,
			"error":     err.Error(),
		})
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	p.auditSuccess(kind, t, decision, trace)
	p.decorate(w, t)
	p.countHit(r, t)

	ctx = tenant.WithTenant(ctx, t)
	ctx = tenant.WithRequestContext(ctx, rc)
	ctx = tenant.WithSession(ctx, session)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// serveGlobal handles routes that operate on the shared partition. No switch
// happens, but the session is still acquired and reset defensively so a
// leaked search path from a previous pool user cannot bleed into registry
// queries.
func (p *Pipeline) serveGlobal(next http.Handler, w http.ResponseWriter, r *http.Request, kind tenant.RouteKind, principal *platformauth.Principal, trace requesttrace.AuditInfo) {
	ctx := r.Context()
	rc := &tenant.RequestContext{
		Operation:            tenant.OperationGlobal,
		RequiresGlobalAccess: true,
	}

	decision, err := p.cfg.Validator.Validate(ctx, principal, rc, kind.Permission)
	if err != nil {
		p.cfg.Logger.Error("access validation failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !decision.Allowed {
		detail := trace.Detail()
		detail["reason"] = decision.Reason
		p.emit(audit.ActionAccessDenied, audit.SeverityHigh, trace, detail)
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	session, err := p.cfg.Switcher.Acquire(ctx)
	if err != nil {
		p.cfg.Logger.Error("schema session acquire failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer session.Release()

	if err := session.ResetToDefault(ctx); err != nil {
		p.cfg.Logger.Error("schema reset failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	p.emit(audit.ActionGlobalAccess, audit.SeverityHigh, trace, trace.Detail())

	ctx = tenant.WithRequestContext(ctx, rc)
	ctx = tenant.WithSession(ctx, session)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// resolveTargets parses the targets header and resolves each slug against the
// directory. A non-zero status means the request must be rejected with msg.
// The ceiling is checked on the raw identifier list so oversized requests are
// refused before any lookup happens.
func (p *Pipeline) resolveTargets(r *http.Request, primary uuid.UUID) ([]uuid.UUID, int, string) {
	raw := r.Header.Get(p.cfg.TargetsHeader)
	if raw == "" {
		return nil, 0, ""
	}

	seen := map[string]struct{}{}
	var slugs []string
	for _, part := range strings.Split(raw, ",") {
		slug := strings.ToLower(strings.TrimSpace(part))
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		slugs = append(slugs, slug)
	}

	if max := p.cfg.Validator.MaxTargets(); len(slugs) > max {
		return nil, http.StatusForbidden, fmt.Sprintf("too many target tenants (limit %d)", max)
	}

	targets := make([]uuid.UUID, 0, len(slugs))
	for _, slug := range slugs {
		t, err := p.cfg.Directory.FindByIdentifier(r.Context(), slug, tenant.IdentifierSlug)
		if err != nil {
			if errors.Is(err, tenant.ErrNotFound) {
				return nil, http.StatusNotFound, "tenant not found"
			}
			p.cfg.Logger.Error("target tenant lookup failed", zap.String("slug", slug), zap.Error(err))
			return nil, http.StatusInternalServerError, "internal server error"
		}
		if t.ID == primary {
			continue
		}
		targets = append(targets, t.ID)
	}
	return targets, 0, ""
}

func (p *Pipeline) auditSuccess(kind tenant.RouteKind, t *tenant.Tenant, decision tenant.Decision, trace requesttrace.AuditInfo) {
	switch kind.Class {
	case tenant.RouteCrossTenant, tenant.RouteMultiTenantUser:
		validated := make([]string, 0, len(decision.ValidatedTenants))
		for _, id := range decision.ValidatedTenants {
			validated = append(validated, id.String())
		}
		detail := trace.Detail()
		detail["primary_tenant_id"] = t.ID.String()
		detail["validated_tenants"] = validated
		p.emit(audit.ActionCrossTenantAccess, audit.SeverityMedium, trace, detail)
	default:
		detail := trace.Detail()
		detail["tenant_id"] = t.ID.String()
		p.emit(audit.ActionTenantAccess, audit.SeverityLow, trace, detail)
	}
}

func (p *Pipeline) decorate(w http.ResponseWriter, t *tenant.Tenant) {
	h := w.Header()
	h.Set(headerTenantID, t.ID.String())
	h.Set(headerTenantName, t.Name)
	h.Set(headerTenantSchema, t.SchemaName)

	if p.cfg.SessionCookie != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     p.cfg.SessionCookie,
			Value:    t.Slug,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (p *Pipeline) countHit(r *http.Request, t *tenant.Tenant) {
	if p.cfg.HitCounter == nil {
		return
	}
	if _, err := p.cfg.HitCounter.Increment(r.Context(), "hits:"+t.Slug); err != nil {
		p.cfg.Logger.Warn("tenant hit counter failed", zap.Error(err))
	}
}

func (p *Pipeline) emit(action string, severity audit.Severity, trace requesttrace.AuditInfo, detail map[string]any) {
	if p.cfg.Auditor == nil {
		return
	}
	p.cfg.Auditor.Emit(action, severity, trace.ActorID, detail)
}
