package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gradnet-io/gradnet/domains/tenants/be/service"
	"github.com/gradnet-io/gradnet/platform/go/persistence"
	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

// registryStub backs a real service so the handler is tested through the full
// decode-validate-render path.
type registryStub struct {
	records map[uuid.UUID]persistence.TenantRecord
	slugs   map[string]bool
}

func newRegistryStub() *registryStub {
	return &registryStub{
		records: map[uuid.UUID]persistence.TenantRecord{},
		slugs:   map[string]bool{},
	}
}

func (s *registryStub) Create(_ context.Context, rec persistence.TenantRecord) (persistence.TenantRecord, error) {
	s.records[rec.ID] = rec
	s.slugs[rec.Slug] = true
	return rec, nil
}

func (s *registryStub) GetByID(_ context.Context, id uuid.UUID) (persistence.TenantRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return persistence.TenantRecord{}, tenant.ErrNotFound
	}
	return rec, nil
}

func (s *registryStub) FindByIdentifier(_ context.Context, identifier string, _ tenant.IdentifierKind) (*tenant.Tenant, error) {
	if s.slugs[identifier] {
		return &tenant.Tenant{Slug: identifier}, nil
	}
	return nil, tenant.ErrNotFound
}

func (s *registryStub) List(context.Context, *string, int, int) ([]persistence.TenantRecord, int, error) {
	var out []persistence.TenantRecord
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (s *registryStub) UpdateStatus(_ context.Context, id uuid.UUID, status string) (persistence.TenantRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return persistence.TenantRecord{}, tenant.ErrNotFound
	}
	rec.Status = status
	s.records[id] = rec
	return rec, nil
}

func (s *registryStub) MarkSchemaReady(_ context.Context, id uuid.UUID) error {
	rec, ok := s.records[id]
	if !ok {
		return tenant.ErrNotFound
	}
	rec.SchemaReady = true
	s.records[id] = rec
	return nil
}

func newRouter(t *testing.T) (*chi.Mux, *registryStub) {
	t.Helper()
	stub := newRegistryStub()
	svc := service.New(stub, service.ProvisionerFunc(func(context.Context, string) error {
		return nil
	}), nil, nil, zap.NewNop())
	h := New(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/admin/tenants", h.List)
	r.Post("/admin/tenants", h.Create)
	r.Get("/admin/tenants/{tenantID}", h.Get)
	r.Patch("/admin/tenants/{tenantID}/status", h.UpdateStatus)
	r.Post("/admin/tenants/{tenantID}/provision", h.Provision)
	return r, stub
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	return w
}

func TestCreateTenant(t *testing.T) {
	router, _ := newRouter(t)

	w := doJSON(t, router, http.MethodPost, "/admin/tenants", map[string]any{
		"name":      "Stanford Alumni",
		"subdomain": "stanford",
		"slug":      "stanford",
	})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "stanford", resp["slug"])
	require.Equal(t, "tenant_stanford", resp["schema_name"])
	require.Equal(t, "active", resp["status"])
	require.Equal(t, true, resp["schema_ready"])
	require.NotContains(t, resp, "custom_domain")

	require.Equal(t, "/api/v1/admin/tenants/"+resp["id"].(string), w.Header().Get("Location"))
}

func TestCreateTenantMissingFields(t *testing.T) {
	router, _ := newRouter(t)

	w := doJSON(t, router, http.MethodPost, "/admin/tenants", map[string]any{"name": "X"})

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem struct {
		Title  string              `json:"title"`
		Status int                 `json:"status"`
		Errors map[string][]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	require.Equal(t, http.StatusBadRequest, problem.Status)
	require.Contains(t, problem.Errors, "subdomain")
	require.Contains(t, problem.Errors, "slug")
}

func TestCreateTenantSlugConflict(t *testing.T) {
	router, _ := newRouter(t)

	first := doJSON(t, router, http.MethodPost, "/admin/tenants", map[string]any{
		"name": "Stanford", "subdomain": "stanford", "slug": "stanford",
	})
	require.Equal(t, http.StatusCreated, first.Code)

	second := doJSON(t, router, http.MethodPost, "/admin/tenants", map[string]any{
		"name": "Stanford Again", "subdomain": "stanford2", "slug": "stanford",
	})
	require.Equal(t, http.StatusConflict, second.Code)
}

func TestGetTenant(t *testing.T) {
	router, stub := newRouter(t)
	id := uuid.New()
	stub.records[id] = persistence.TenantRecord{ID: id, Name: "MIT", Slug: "mit"}

	w := doJSON(t, router, http.MethodGet, "/admin/tenants/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	missing := doJSON(t, router, http.MethodGet, "/admin/tenants/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, missing.Code)

	malformed := doJSON(t, router, http.MethodGet, "/admin/tenants/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, malformed.Code)
}

func TestUpdateTenantStatus(t *testing.T) {
	router, stub := newRouter(t)
	id := uuid.New()
	stub.records[id] = persistence.TenantRecord{ID: id, Slug: "mit", Status: "active"}

	w := doJSON(t, router, http.MethodPatch, "/admin/tenants/"+id.String()+"/status", map[string]any{
		"status": "suspended",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "suspended", resp["status"])

	bad := doJSON(t, router, http.MethodPatch, "/admin/tenants/"+id.String()+"/status", map[string]any{
		"status": "vaporized",
	})
	require.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestProvisionTenant(t *testing.T) {
	router, stub := newRouter(t)
	id := uuid.New()
	stub.records[id] = persistence.TenantRecord{ID: id, Slug: "mit", SchemaName: "tenant_mit"}

	w := doJSON(t, router, http.MethodPost, "/admin/tenants/"+id.String()+"/provision", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.True(t, stub.records[id].SchemaReady)
}
