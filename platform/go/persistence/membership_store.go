package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

// MembershipRecord represents one user-tenant join row.
type MembershipRecord struct {
	GlobalUserID uuid.UUID  `db:"global_user_id"`
	TenantID     uuid.UUID  `db:"tenant_id"`
	Status       string     `db:"status"`
	Permissions  []string   `db:"permissions"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
}

// MembershipStore provides access to the user_tenants join table and the
// global_users table.
type MembershipStore struct {
	db         DB
	table      string
	usersTable string
}

// NewMembershipStore creates a store; assumes migrations already created the tables.
func NewMembershipStore(ctx context.Context, db DB, defaultSchema string) (*MembershipStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	schema, err := normalizeIdentifier(defaultSchema)
	if err != nil {
		return nil, fmt.Errorf("default schema: %w", err)
	}
	return &MembershipStore{
		db:         db,
		table:      schema + ".user_tenants",
		usersTable: schema + ".global_users",
	}, nil
}

// FindMembership implements the membership lookup behind the access validator.
func (s *MembershipStore) FindMembership(ctx context.Context, userID, tenantID uuid.UUID) (*tenant.Membership, error) {
	query := fmt.Sprintf(`
        SELECT global_user_id, tenant_id, status, permissions
        FROM %s
        WHERE global_user_id = $1 AND tenant_id = $2
    `, s.table)

	var m tenant.Membership
	var status string
	err := s.db.QueryRow(ctx, query, userID, tenantID).Scan(&m.UserID, &m.TenantID, &status, &m.Permissions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	m.Status = tenant.MembershipStatus(status)

	return &m, nil
}

// ListForUser returns every membership row of one global user, newest first.
func (s *MembershipStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]MembershipRecord, error) {
	query := fmt.Sprintf(`
        SELECT global_user_id, tenant_id, status, permissions, created_at, updated_at
        FROM %s
        WHERE global_user_id = $1
        ORDER BY created_at DESC
    `, s.table)

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []MembershipRecord
	for rows.Next() {
		var rec MembershipRecord
		if err := rows.Scan(&rec.GlobalUserID, &rec.TenantID, &rec.Status, &rec.Permissions, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Upsert writes a membership row; the primary key (user, tenant) guarantees
// at most one row per pair.
func (s *MembershipStore) Upsert(ctx context.Context, rec MembershipRecord) (MembershipRecord, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (global_user_id, tenant_id, status, permissions, created_at)
        VALUES ($1, $2, $3, $4, now())
        ON CONFLICT (global_user_id, tenant_id)
        DO UPDATE SET status = EXCLUDED.status, permissions = EXCLUDED.permissions, updated_at = now()
        RETURNING global_user_id, tenant_id, status, permissions, created_at, updated_at
    `, s.table)

	var out MembershipRecord
	err := s.db.QueryRow(ctx, query, rec.GlobalUserID, rec.TenantID, rec.Status, rec.Permissions).
		Scan(&out.GlobalUserID, &out.TenantID, &out.Status, &out.Permissions, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return MembershipRecord{}, fmt.Errorf("upsert membership: %w", err)
	}
	return out, nil
}

// Revoke flips a membership to revoked. Callers are expected to invalidate
// the membership cache so the revocation is not masked by the TTL window.
func (s *MembershipStore) Revoke(ctx context.Context, userID, tenantID uuid.UUID) error {
	query := fmt.Sprintf(`
        UPDATE %s SET status = $3, updated_at = now()
        WHERE global_user_id = $1 AND tenant_id = $2
    `, s.table)

	tag, err := s.db.Exec(ctx, query, userID, tenantID, string(tenant.MembershipRevoked))
	if err != nil {
		return fmt.Errorf("revoke membership: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrMembershipNotFound
	}
	return nil
}

// GetGlobalUser returns the cross-tenant identity record behind a principal.
func (s *MembershipStore) GetGlobalUser(ctx context.Context, id uuid.UUID) (tenant.GlobalUser, error) {
	query := fmt.Sprintf(`
        SELECT id, email, default_tenant_id, super_admin
        FROM %s
        WHERE id = $1
    `, s.usersTable)

	var u tenant.GlobalUser
	err := s.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.DefaultTenantID, &u.SuperAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tenant.GlobalUser{}, tenant.ErrGlobalUserNotFound
		}
		return tenant.GlobalUser{}, fmt.Errorf("get global user: %w", err)
	}
	return u, nil
}
