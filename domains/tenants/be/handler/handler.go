package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradnet-io/gradnet/domains/tenants/be/service"
	"github.com/gradnet-io/gradnet/platform/go/persistence"
	"github.com/gradnet-io/gradnet/platform/go/problems"
)

// Handler exposes the tenant registry over HTTP. All routes are global-scope
// admin routes and run against the default partition.
type Handler struct {
	svc    *service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc *service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

type createRequest struct {
	Name         string  `json:"name"`
	Subdomain    string  `json:"subdomain"`
	CustomDomain *string `json:"custom_domain,omitempty"`
	Slug         string  `json:"slug"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type tenantResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Subdomain          string     `json:"subdomain"`
	CustomDomain       *string    `json:"custom_domain,omitempty"`
	Slug               string     `json:"slug"`
	SchemaName         string     `json:"schema_name"`
	Status             string     `json:"status"`
	SubscriptionActive bool       `json:"subscription_active"`
	SchemaReady        bool       `json:"schema_ready"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

type listResponse struct {
	Items      []tenantResponse `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalItems int              `json:"total_items"`
	TotalPages int              `json:"total_pages"`
}

// List implements GET /admin/tenants.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	opts := service.ListOptions{Page: 1, PageSize: 20}
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Page = n
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.PageSize = n
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		opts.Status = &v
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.renderError(w, err)
		return
	}

	items := make([]tenantResponse, 0, len(result.Tenants))
	for _, rec := range result.Tenants {
		items = append(items, toResponse(rec))
	}

	h.renderJSON(w, http.StatusOK, listResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

// Create implements POST /admin/tenants.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problems.Validation(w, "invalid request body", nil)
		return
	}

	errs := map[string][]string{}
	if req.Name == "" {
		errs["name"] = append(errs["name"], "name is required")
	}
	if req.Subdomain == "" {
		errs["subdomain"] = append(errs["subdomain"], "subdomain is required")
	}
	if req.Slug == "" {
		errs["slug"] = append(errs["slug"], "slug is required")
	}
	if len(errs) > 0 {
		problems.Validation(w, "missing required fields", errs)
		return
	}

	rec, err := h.svc.Create(r.Context(), service.CreateInput{
		Name:         req.Name,
		Subdomain:    req.Subdomain,
		CustomDomain: req.CustomDomain,
		Slug:         req.Slug,
	})
	if err != nil {
		h.renderError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/admin/tenants/"+rec.ID.String())
	h.renderJSON(w, http.StatusCreated, toResponse(rec))
}

// Get implements GET /admin/tenants/{tenantID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.renderJSON(w, http.StatusOK, toResponse(rec))
}

// UpdateStatus implements PATCH /admin/tenants/{tenantID}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problems.Validation(w, "invalid request body", nil)
		return
	}

	rec, err := h.svc.UpdateStatus(r.Context(), id, service.UpdateStatusInput{Status: req.Status})
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.renderJSON(w, http.StatusOK, toResponse(rec))
}

// Provision implements POST /admin/tenants/{tenantID}/provision.
func (h *Handler) Provision(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Provision(r.Context(), id)
	if err != nil {
		h.renderError(w, err)
		return
	}
	h.renderJSON(w, http.StatusAccepted, toResponse(rec))
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		problems.Validation(w, "invalid tenant id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		problems.NotFound(w, "tenant not found")
	case errors.Is(err, service.ErrConflictSlug):
		problems.Conflict(w, "tenant slug already exists")
	case errors.Is(err, service.ErrInvalidSlug):
		problems.Validation(w, "invalid tenant slug", nil)
	case errors.Is(err, service.ErrInvalidState):
		problems.Validation(w, "invalid tenant status", nil)
	default:
		h.logger.Error("tenant operation failed", zap.Error(err))
		problems.Internal(w)
	}
}

func (h *Handler) renderJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("response encoding failed", zap.Error(err))
	}
}

func toResponse(rec persistence.TenantRecord) tenantResponse {
	return tenantResponse(rec)
}
