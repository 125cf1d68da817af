// Package service implements the tenant registry: creating tenants with
// derived schema names, provisioning their partitions, and lifecycle status
// changes. All registry state lives in the default partition.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gradnet-io/gradnet/platform/go/audit"
	"github.com/gradnet-io/gradnet/platform/go/persistence"
	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound     = errors.New("tenant not found")
	ErrConflictSlug = errors.New("tenant slug already exists")
	ErrInvalidSlug  = errors.New("invalid tenant slug")
	ErrInvalidState = errors.New("invalid tenant status")
)

// Repository abstracts the registry store.
type Repository interface {
	Create(ctx context.Context, rec persistence.TenantRecord) (persistence.TenantRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error)
	FindByIdentifier(ctx context.Context, identifier string, kind tenant.IdentifierKind) (*tenant.Tenant, error)
	List(ctx context.Context, status *string, limit, offset int) ([]persistence.TenantRecord, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (persistence.TenantRecord, error)
	MarkSchemaReady(ctx context.Context, id uuid.UUID) error
}

// Provisioner creates the per-tenant schema and its tables.
type Provisioner interface {
	EnsureSchema(ctx context.Context, schemaName string) error
}

// ProvisionerFunc adapts a function to the Provisioner interface.
type ProvisionerFunc func(ctx context.Context, schemaName string) error

func (f ProvisionerFunc) EnsureSchema(ctx context.Context, schemaName string) error {
	return f(ctx, schemaName)
}

// Invalidator evicts cached directory entries after registry mutations.
type Invalidator interface {
	Invalidate(ctx context.Context, t *tenant.Tenant)
}

// CreateInput represents the request to create a tenant.
type CreateInput struct {
	Name         string
	Subdomain    string
	CustomDomain *string
	Slug         string
}

// UpdateStatusInput represents a lifecycle status change.
type UpdateStatusInput struct {
	Status string
}

// ListOptions captures filters and pagination.
type ListOptions struct {
	Page     int
	PageSize int
	Status   *string
}

// ListResult wraps paginated tenants.
type ListResult struct {
	Tenants    []persistence.TenantRecord
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// Service provides tenant registry operations.
type Service struct {
	repo        Repository
	provisioner Provisioner
	invalidator Invalidator
	auditor     *audit.Logger
	logger      *zap.Logger
}

// New constructs a Service with required dependencies. The invalidator and
// auditor are optional.
func New(repo Repository, provisioner Provisioner, invalidator Invalidator, auditor *audit.Logger, logger *zap.Logger) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if provisioner == nil {
		panic("tenants provisioner is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{repo: repo, provisioner: provisioner, invalidator: invalidator, auditor: auditor, logger: logger}
}

// Create registers a new tenant and provisions its schema. The schema name is
// derived from the slug and never accepted from the caller.
func (s *Service) Create(ctx context.Context, input CreateInput) (persistence.TenantRecord, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !tenant.ValidSlug(slug) {
		return persistence.TenantRecord{}, ErrInvalidSlug
	}

	if _, err := s.repo.FindByIdentifier(ctx, slug, tenant.IdentifierSlug); err == nil {
		return persistence.TenantRecord{}, ErrConflictSlug
	} else if !errors.Is(err, tenant.ErrNotFound) {
		return persistence.TenantRecord{}, fmt.Errorf("slug lookup: %w", err)
	}

	rec := persistence.TenantRecord{
		ID:                 uuid.New(),
		Name:               input.Name,
		Subdomain:          strings.ToLower(strings.TrimSpace(input.Subdomain)),
		CustomDomain:       normalizeDomain(input.CustomDomain),
		Slug:               slug,
		SchemaName:         tenant.BuildSchemaName(tenant.ToSnake(slug)),
		Status:             string(tenant.StatusActive),
		SubscriptionActive: true,
		SchemaReady:        false,
		CreatedAt:          time.Now().UTC(),
	}

	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return persistence.TenantRecord{}, err
	}

	if err := s.provisioner.EnsureSchema(ctx, created.SchemaName); err != nil {
		// The registry row stays with schema_ready=false; the resolver
		// treats the tenant as inactive until Provision succeeds.
		s.logger.Error("tenant schema provisioning failed",
			zap.String("tenant_id", created.ID.String()),
			zap.String("schema", created.SchemaName),
			zap.Error(err))
		return created, nil
	}
	if err := s.repo.MarkSchemaReady(ctx, created.ID); err != nil {
		return persistence.TenantRecord{}, err
	}
	created.SchemaReady = true

	return created, nil
}

// Get returns a tenant by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return persistence.TenantRecord{}, ErrNotFound
		}
		return persistence.TenantRecord{}, err
	}
	return rec, nil
}

// List tenants with optional status filter.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	records, total, err := s.repo.List(ctx, opts.Status, pageSize, (page-1)*pageSize)
	if err != nil {
		return ListResult{}, err
	}

	totalPages := (total + pageSize - 1) / pageSize
	return ListResult{
		Tenants:    records,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}, nil
}

// UpdateStatus changes a tenant's lifecycle status and evicts its cached
// directory entries so the change is visible within a request or two.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, input UpdateStatusInput) (persistence.TenantRecord, error) {
	switch tenant.Status(input.Status) {
	case tenant.StatusActive, tenant.StatusInactive, tenant.StatusSuspended:
	default:
		return persistence.TenantRecord{}, ErrInvalidState
	}

	rec, err := s.repo.UpdateStatus(ctx, id, input.Status)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return persistence.TenantRecord{}, ErrNotFound
		}
		return persistence.TenantRecord{}, err
	}

	s.invalidate(ctx, rec)

	if s.auditor != nil && tenant.Status(input.Status) != tenant.StatusActive {
		s.auditor.Emit(audit.ActionTenantInactive, audit.SeverityMedium, nil, map[string]any{
			"tenant_id": rec.ID.String(),
			"status":    rec.Status,
		})
	}

	return rec, nil
}

// Provision creates the tenant's schema if it does not exist yet and marks
// the registry row ready. Safe to call repeatedly.
func (s *Service) Provision(ctx context.Context, id uuid.UUID) (persistence.TenantRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return persistence.TenantRecord{}, err
	}

	if err := s.provisioner.EnsureSchema(ctx, rec.SchemaName); err != nil {
		return persistence.TenantRecord{}, fmt.Errorf("ensure schema %s: %w", rec.SchemaName, err)
	}

	if !rec.SchemaReady {
		if err := s.repo.MarkSchemaReady(ctx, rec.ID); err != nil {
			return persistence.TenantRecord{}, err
		}
		rec.SchemaReady = true
		s.invalidate(ctx, rec)
	}

	return rec, nil
}

func (s *Service) invalidate(ctx context.Context, rec persistence.TenantRecord) {
	if s.invalidator == nil {
		return
	}
	t := &tenant.Tenant{
		ID:        rec.ID,
		Subdomain: rec.Subdomain,
		Slug:      rec.Slug,
	}
	if rec.CustomDomain != nil {
		t.CustomDomain = *rec.CustomDomain
	}
	s.invalidator.Invalidate(ctx, t)
}

func normalizeDomain(domain *string) *string {
	if domain == nil {
		return nil
	}
	d := strings.ToLower(strings.TrimSpace(*domain))
	if d == "" {
		return nil
	}
	return &d
}
