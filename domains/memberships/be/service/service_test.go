package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/gradnet-io/gradnet/domains/memberships/be/repo"
	"github.com/gradnet-io/gradnet/platform/go/persistence"
	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

type fakeRegistry struct {
	listForUserFn func(ctx context.Context, userID uuid.UUID) ([]persistence.MembershipRecord, error)
	upsertFn      func(ctx context.Context, rec persistence.MembershipRecord) (persistence.MembershipRecord, error)
	revokeFn      func(ctx context.Context, userID, tenantID uuid.UUID) error
}

func (f *fakeRegistry) ListForUser(ctx context.Context, userID uuid.UUID) ([]persistence.MembershipRecord, error) {
	return f.listForUserFn(ctx, userID)
}

func (f *fakeRegistry) Upsert(ctx context.Context, rec persistence.MembershipRecord) (persistence.MembershipRecord, error) {
	return f.upsertFn(ctx, rec)
}

func (f *fakeRegistry) Revoke(ctx context.Context, userID, tenantID uuid.UUID) error {
	return f.revokeFn(ctx, userID, tenantID)
}

type fakeRoster struct {
	rows    map[uuid.UUID]repo.Member
	added   []repo.Member
	removed []uuid.UUID
}

func newFakeRoster() *fakeRoster {
	return &fakeRoster{rows: map[uuid.UUID]repo.Member{}}
}

func (f *fakeRoster) List(context.Context) ([]repo.Member, error) {
	out := make([]repo.Member, 0, len(f.rows))
	for _, m := range f.rows {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeRoster) Get(_ context.Context, globalUserID uuid.UUID) (repo.Member, error) {
	m, ok := f.rows[globalUserID]
	if !ok {
		return repo.Member{}, pgx.ErrNoRows
	}
	return m, nil
}

func (f *fakeRoster) Add(_ context.Context, rec repo.Member) error {
	f.rows[rec.GlobalUserID] = rec
	f.added = append(f.added, rec)
	return nil
}

func (f *fakeRoster) Remove(_ context.Context, globalUserID uuid.UUID) error {
	delete(f.rows, globalUserID)
	f.removed = append(f.removed, globalUserID)
	return nil
}

type recordingInvalidator struct {
	pairs [][2]uuid.UUID
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID, tenantID uuid.UUID) {
	r.pairs = append(r.pairs, [2]uuid.UUID{userID, tenantID})
}

func tenantContext(t *tenant.Tenant) context.Context {
	return tenant.WithTenant(context.Background(), t)
}

func activeTenant() *tenant.Tenant {
	return &tenant.Tenant{ID: uuid.New(), Slug: "stanford", SchemaName: "tenant_stanford"}
}

func TestListMineFiltersRevoked(t *testing.T) {
	userID := uuid.New()
	activeID := uuid.New()
	registry := &fakeRegistry{
		listForUserFn: func(_ context.Context, gotID uuid.UUID) ([]persistence.MembershipRecord, error) {
			require.Equal(t, userID, gotID)
			return []persistence.MembershipRecord{
				{GlobalUserID: userID, TenantID: activeID, Status: "active", Permissions: []string{"*"}, CreatedAt: time.Now().UTC()},
				{GlobalUserID: userID, TenantID: uuid.New(), Status: "revoked"},
			}, nil
		},
	}

	svc := New(registry, newFakeRoster(), nil, nil)

	views, err := svc.ListMine(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, activeID, views[0].TenantID)
	require.Equal(t, "active", views[0].Status)
}

func TestListMineRequiresUserID(t *testing.T) {
	svc := New(&fakeRegistry{}, newFakeRoster(), nil, nil)

	_, err := svc.ListMine(context.Background(), uuid.Nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGrantWritesBothPartitions(t *testing.T) {
	active := activeTenant()
	userID := uuid.New()

	var upserted *persistence.MembershipRecord
	registry := &fakeRegistry{
		upsertFn: func(_ context.Context, rec persistence.MembershipRecord) (persistence.MembershipRecord, error) {
			upserted = &rec
			return rec, nil
		},
	}
	roster := newFakeRoster()
	inv := &recordingInvalidator{}

	svc := New(registry, roster, inv, nil)

	member, err := svc.Grant(tenantContext(active), GrantInput{
		UserID:      userID,
		Email:       "  Alice@Example.com ",
		Role:        "",
		Permissions: []string{"members.read"},
	})
	require.NoError(t, err)

	require.NotNil(t, upserted)
	require.Equal(t, userID, upserted.GlobalUserID)
	require.Equal(t, active.ID, upserted.TenantID)
	require.Equal(t, string(tenant.MembershipActive), upserted.Status)
	require.Equal(t, []string{"members.read"}, upserted.Permissions)

	require.Equal(t, "alice@example.com", member.Email)
	require.Equal(t, "member", member.Role)
	require.Len(t, roster.added, 1)

	require.Equal(t, [][2]uuid.UUID{{userID, active.ID}}, inv.pairs)
}

func TestGrantValidation(t *testing.T) {
	svc := New(&fakeRegistry{}, newFakeRoster(), nil, nil)

	_, err := svc.Grant(tenantContext(activeTenant()), GrantInput{Email: "not-an-email"})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "userId")
	require.Contains(t, vErr.Fields, "email")
}

func TestGrantRequiresTenantContext(t *testing.T) {
	svc := New(&fakeRegistry{}, newFakeRoster(), nil, nil)

	_, err := svc.Grant(context.Background(), GrantInput{UserID: uuid.New(), Email: "a@b.c"})
	require.ErrorIs(t, err, tenant.ErrNoTenantInContext)
}

func TestRevoke(t *testing.T) {
	active := activeTenant()
	userID := uuid.New()

	var revokedTenant uuid.UUID
	registry := &fakeRegistry{
		revokeFn: func(_ context.Context, gotUser, gotTenant uuid.UUID) error {
			require.Equal(t, userID, gotUser)
			revokedTenant = gotTenant
			return nil
		},
	}
	roster := newFakeRoster()
	roster.rows[userID] = repo.Member{GlobalUserID: userID, Email: "alice@example.com"}
	inv := &recordingInvalidator{}

	svc := New(registry, roster, inv, nil)

	require.NoError(t, svc.Revoke(tenantContext(active), userID))
	require.Equal(t, active.ID, revokedTenant)
	require.Equal(t, []uuid.UUID{userID}, roster.removed)
	require.Equal(t, [][2]uuid.UUID{{userID, active.ID}}, inv.pairs)
}

func TestRevokeUnknownMember(t *testing.T) {
	registry := &fakeRegistry{
		revokeFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			t.Fatal("registry must not be touched")
			return nil
		},
	}

	svc := New(registry, newFakeRoster(), nil, nil)

	err := svc.Revoke(tenantContext(activeTenant()), uuid.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeRegistryMiss(t *testing.T) {
	userID := uuid.New()
	registry := &fakeRegistry{
		revokeFn: func(context.Context, uuid.UUID, uuid.UUID) error {
			return tenant.ErrMembershipNotFound
		},
	}
	roster := newFakeRoster()
	roster.rows[userID] = repo.Member{GlobalUserID: userID}

	svc := New(registry, roster, nil, nil)

	err := svc.Revoke(tenantContext(activeTenant()), userID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, roster.removed)
}

func TestRevokeRosterFailurePropagates(t *testing.T) {
	userID := uuid.New()
	boom := errors.New("partition unavailable")

	registry := &fakeRegistry{
		revokeFn: func(context.Context, uuid.UUID, uuid.UUID) error { return nil },
	}
	roster := newFakeRoster()
	roster.rows[userID] = repo.Member{GlobalUserID: userID}

	svc := New(registry, &failingRemoveRoster{fakeRoster: roster, err: boom}, nil, nil)

	err := svc.Revoke(tenantContext(activeTenant()), userID)
	require.ErrorIs(t, err, boom)
}

type failingRemoveRoster struct {
	*fakeRoster
	err error
}

func (f *failingRemoveRoster) Remove(context.Context, uuid.UUID) error {
	return f.err
}
