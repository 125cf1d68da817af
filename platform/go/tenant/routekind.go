package tenant

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// RouteClass enumerates how an endpoint addresses tenant partitions.
type RouteClass string

const (
	RouteSingleTenant    RouteClass = "single_tenant"
	RouteCrossTenant     RouteClass = "cross_tenant"
	RouteMultiTenantUser RouteClass = "multi_tenant_user"
	RouteGlobal          RouteClass = "global"
)

// RouteKind is the explicit classification attached to each endpoint at
// registration time. Permission is the membership permission the route
// requires; empty means membership alone suffices.
type RouteKind struct {
	Class      RouteClass
	Permission string
}

// SingleTenant classifies a route scoped to the resolved tenant.
func SingleTenant(permission string) RouteKind {
	return RouteKind{Class: RouteSingleTenant, Permission: permission}
}

// CrossTenant classifies a route that addresses several tenant partitions in
// one request.
func CrossTenant(permission string) RouteKind {
	return RouteKind{Class: RouteCrossTenant, Permission: permission}
}

// MultiTenantUser classifies a route acting on all tenants the principal
// belongs to.
func MultiTenantUser(permission string) RouteKind {
	return RouteKind{Class: RouteMultiTenantUser, Permission: permission}
}

// Global classifies a route scoped to no tenant; it requires super-admin
// privilege and always runs against the default partition.
func Global() RouteKind {
	return RouteKind{Class: RouteGlobal}
}

// Operation maps the route class to the request operation kind.
func (k RouteKind) Operation() OperationKind {
	switch k.Class {
	case RouteGlobal:
		return OperationGlobal
	case RouteCrossTenant:
		return OperationCrossTenant
	case RouteMultiTenantUser:
		return OperationMultiTenantUser
	default:
		return OperationSingleTenant
	}
}

// RouteRegistry records the kind of every registered endpoint so the
// resolution pipeline classifies requests by route pattern lookup instead of
// re-parsing path strings per request.
type RouteRegistry struct {
	mu    sync.RWMutex
	kinds map[string]RouteKind
}

// NewRouteRegistry returns an empty registry.
func NewRouteRegistry() *RouteRegistry {
	return &RouteRegistry{kinds: make(map[string]RouteKind)}
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

// Register records the kind for a method and chi route pattern.
func (reg *RouteRegistry) Register(method, pattern string, kind RouteKind) {
	reg.mu.Lock()
	reg.kinds[routeKey(method, pattern)] = kind
	reg.mu.Unlock()
}

// Handle registers the handler on the router and records its kind in one
// step, keeping pattern and classification from drifting apart.
func (reg *RouteRegistry) Handle(r chi.Router, method, pattern string, kind RouteKind, h http.HandlerFunc) {
	reg.Register(method, pattern, kind)
	r.Method(method, pattern, h)
}

// Lookup returns the kind registered for a method and pattern.
func (reg *RouteRegistry) Lookup(method, pattern string) (RouteKind, bool) {
	reg.mu.RLock()
	kind, ok := reg.kinds[routeKey(method, pattern)]
	reg.mu.RUnlock()
	return kind, ok
}

// Classify matches the request against the router's route tree and returns
// the registered kind for the matched pattern. Unregistered routes default to
// single-tenant with no extra permission.
func (reg *RouteRegistry) Classify(routes chi.Routes, r *http.Request) RouteKind {
	path := r.URL.Path
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath != "" {
		path = rctx.RoutePath
	}

	rctx := chi.NewRouteContext()
	if routes != nil && routes.Match(rctx, r.Method, path) {
		if kind, ok := reg.Lookup(r.Method, rctx.RoutePattern()); ok {
			return kind
		}
	}
	return SingleTenant("")
}
