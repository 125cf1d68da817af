package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func noopHandler(w http.ResponseWriter, r *http.Request) {}

func TestRouteKindOperation(t *testing.T) {
	require.Equal(t, OperationSingleTenant, SingleTenant("").Operation())
	require.Equal(t, OperationCrossTenant, CrossTenant("x").Operation())
	require.Equal(t, OperationMultiTenantUser, MultiTenantUser("").Operation())
	require.Equal(t, OperationGlobal, Global().Operation())
}

func TestRouteRegistryClassify(t *testing.T) {
	reg := NewRouteRegistry()
	router := chi.NewRouter()

	reg.Handle(router, http.MethodGet, "/members", SingleTenant("members.read"), noopHandler)
	reg.Handle(router, http.MethodGet, "/members/{userID}", SingleTenant("members.read"), noopHandler)
	reg.Handle(router, http.MethodGet, "/network/members", CrossTenant("members.read"), noopHandler)
	reg.Handle(router, http.MethodGet, "/admin/tenants", Global(), noopHandler)

	t.Run("exact pattern", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/tenants", nil)
		require.Equal(t, Global(), reg.Classify(router, r))
	})

	t.Run("parameterized pattern", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/members/6a6e2a43-5686-4b21-a5f1-6b1ad38c5bb1", nil)
		kind := reg.Classify(router, r)
		require.Equal(t, RouteSingleTenant, kind.Class)
		require.Equal(t, "members.read", kind.Permission)
	})

	t.Run("cross tenant route", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/network/members", nil)
		require.Equal(t, RouteCrossTenant, reg.Classify(router, r).Class)
	})

	t.Run("unregistered route defaults to single tenant", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/unknown", nil)
		require.Equal(t, SingleTenant(""), reg.Classify(router, r))
	})

	t.Run("method distinguishes kinds", func(t *testing.T) {
		reg.Handle(router, http.MethodPost, "/members", SingleTenant("members.manage"), noopHandler)

		r := httptest.NewRequest(http.MethodPost, "/members", nil)
		require.Equal(t, "members.manage", reg.Classify(router, r).Permission)
	})
}

func TestRouteRegistryClassifyMountedRouter(t *testing.T) {
	reg := NewRouteRegistry()

	inner := chi.NewRouter()
	reg.Handle(inner, http.MethodGet, "/admin/tenants", Global(), noopHandler)

	// Simulate the request context state inside a router mounted at /api/v1:
	// the full URL path carries the mount prefix, RoutePath the remainder.
	r := httptest.NewRequest(http.MethodGet, "/api/v1/admin/tenants", nil)
	rctx := chi.NewRouteContext()
	rctx.RoutePath = "/admin/tenants"
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	require.Equal(t, Global(), reg.Classify(inner, r))
}
