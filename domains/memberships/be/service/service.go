// Package service implements membership operations: listing a user's tenant
// memberships from the registry, and managing the member roster inside the
// active tenant partition.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gradnet-io/gradnet/domains/memberships/be/repo"
	"github.com/gradnet-io/gradnet/platform/go/audit"
	"github.com/gradnet-io/gradnet/platform/go/persistence"
	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("membership not found")
)

// MembershipView is the domain view of one registry membership row.
type MembershipView struct {
	TenantID    uuid.UUID
	Status      string
	Permissions []string
	CreatedAt   time.Time
}

// GrantInput adds or refreshes a membership for a user in the active tenant.
type GrantInput struct {
	UserID      uuid.UUID
	Email       string
	DisplayName *string
	Role        string
	Permissions []string
}

// Invalidator evicts cached membership entries after mutations.
type Invalidator interface {
	Invalidate(ctx context.Context, userID, tenantID uuid.UUID)
}

// Roster is the tenant-partition side of memberships, satisfied by
// repo.Members.
type Roster interface {
	List(ctx context.Context) ([]repo.Member, error)
	Get(ctx context.Context, globalUserID uuid.UUID) (repo.Member, error)
	Add(ctx context.Context, rec repo.Member) error
	Remove(ctx context.Context, globalUserID uuid.UUID) error
}

// Service defines the business operations for the memberships domain.
type Service interface {
	ListMine(ctx context.Context, userID uuid.UUID) ([]MembershipView, error)
	Members(ctx context.Context) ([]repo.Member, error)
	Grant(ctx context.Context, input GrantInput) (repo.Member, error)
	Revoke(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	registry    repo.Registry
	members     Roster
	invalidator Invalidator
	auditor     *audit.Logger
}

// New constructs a memberships Service. The invalidator and auditor are
// optional.
func New(registry repo.Registry, members Roster, invalidator Invalidator, auditor *audit.Logger) Service {
	if registry == nil {
		panic("membership registry is required")
	}
	if members == nil {
		panic("members repository is required")
	}
	return &service{registry: registry, members: members, invalidator: invalidator, auditor: auditor}
}

// ListMine returns the registry memberships of the given user, revoked ones
// excluded.
func (s *service) ListMine(ctx context.Context, userID uuid.UUID) ([]MembershipView, error) {
	if userID == uuid.Nil {
		return nil, ErrNotFound
	}

	records, err := s.registry.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]MembershipView, 0, len(records))
	for _, rec := range records {
		if tenant.MembershipStatus(rec.Status) == tenant.MembershipRevoked {
			continue
		}
		views = append(views, MembershipView{
			TenantID:    rec.TenantID,
			Status:      rec.Status,
			Permissions: rec.Permissions,
			CreatedAt:   rec.CreatedAt,
		})
	}
	return views, nil
}

// Members lists the roster of the active tenant partition.
func (s *service) Members(ctx context.Context) ([]repo.Member, error) {
	return s.members.List(ctx)
}

// Grant writes both sides of a membership: the registry row that access
// validation reads, and the roster row inside the tenant partition.
func (s *service) Grant(ctx context.Context, input GrantInput) (repo.Member, error) {
	t, ok := tenant.FromContext(ctx)
	if !ok {
		return repo.Member{}, tenant.ErrNoTenantInContext
	}

	fieldErrors := FieldErrors{}
	if input.UserID == uuid.Nil {
		fieldErrors.add("userId", "userId is required")
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		fieldErrors.add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		fieldErrors.add("email", "email must contain '@'")
	}
	if len(fieldErrors) > 0 {
		return repo.Member{}, &ValidationError{Fields: fieldErrors}
	}

	role := input.Role
	if role == "" {
		role = "member"
	}

	if _, err := s.registry.Upsert(ctx, persistence.MembershipRecord{
		GlobalUserID: input.UserID,
		TenantID:     t.ID,
		Status:       string(tenant.MembershipActive),
		Permissions:  input.Permissions,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		return repo.Member{}, err
	}

	member := repo.Member{
		ID:           uuid.New(),
		GlobalUserID: input.UserID,
		Email:        strings.ToLower(email),
		DisplayName:  input.DisplayName,
		Role:         role,
		JoinedAt:     time.Now().UTC(),
	}
	if err := s.members.Add(ctx, member); err != nil {
		return repo.Member{}, err
	}

	s.invalidate(ctx, input.UserID, t.ID)

	return member, nil
}

// Revoke removes a user's access to the active tenant: the registry row is
// marked revoked and the roster row deleted. The cached membership is evicted
// so the revocation takes effect on the next request, not after TTL expiry.
func (s *service) Revoke(ctx context.Context, userID uuid.UUID) error {
	t, ok := tenant.FromContext(ctx)
	if !ok {
		return tenant.ErrNoTenantInContext
	}
	if userID == uuid.Nil {
		return ErrNotFound
	}

	if _, err := s.members.Get(ctx, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if err := s.registry.Revoke(ctx, userID, t.ID); err != nil {
		if errors.Is(err, tenant.ErrMembershipNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := s.members.Remove(ctx, userID); err != nil {
		return err
	}

	s.invalidate(ctx, userID, t.ID)

	if s.auditor != nil {
		s.auditor.Emit(audit.ActionMembershipRevoked, audit.SeverityMedium, nil, map[string]any{
			"user_id":   userID.String(),
			"tenant_id": t.ID.String(),
		})
	}

	return nil
}

func (s *service) invalidate(ctx context.Context, userID, tenantID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	s.invalidator.Invalidate(ctx, userID, tenantID)
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
