// Package repo splits membership persistence across the two partitions it
// spans: the registry's user_tenants table in the default partition, and the
// members table inside the active tenant partition.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gradnet-io/gradnet/platform/go/persistence"
)

// ErrNoSession is returned when a partition-scoped query runs outside the
// tenancy pipeline.
var ErrNoSession = errors.New("no schema session on request context")

// Registry is the shared-partition side of memberships.
type Registry interface {
	ListForUser(ctx context.Context, userID uuid.UUID) ([]persistence.MembershipRecord, error)
	Upsert(ctx context.Context, rec persistence.MembershipRecord) (persistence.MembershipRecord, error)
	Revoke(ctx context.Context, userID, tenantID uuid.UUID) error
}

// Member is one row of the active tenant's members table.
type Member struct {
	ID           uuid.UUID
	GlobalUserID uuid.UUID
	Email        string
	DisplayName  *string
	Role         string
	JoinedAt     time.Time
}

// Members reads and writes the members table of whichever tenant partition
// the request's schema session points at. The statements never qualify the
// table name; the search path decides the tenant.
type Members struct{}

// NewMembers constructs the partition-scoped members repository.
func NewMembers() *Members {
	return &Members{}
}

// List returns the partition's members, newest first.
func (m *Members) List(ctx context.Context) ([]Member, error) {
	session, ok := persistence.RequestSession(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	rows, err := session.Query(ctx, `
        SELECT id, global_user_id, email, display_name, role, joined_at
        FROM members
        ORDER BY joined_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var rec Member
		if err := rows.Scan(&rec.ID, &rec.GlobalUserID, &rec.Email, &rec.DisplayName, &rec.Role, &rec.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, rec)
	}
	return members, rows.Err()
}

// Get returns one member by global user id.
func (m *Members) Get(ctx context.Context, globalUserID uuid.UUID) (Member, error) {
	session, ok := persistence.RequestSession(ctx)
	if !ok {
		return Member{}, ErrNoSession
	}

	var rec Member
	err := session.QueryRow(ctx, `
        SELECT id, global_user_id, email, display_name, role, joined_at
        FROM members
        WHERE global_user_id = $1`, globalUserID).
		Scan(&rec.ID, &rec.GlobalUserID, &rec.Email, &rec.DisplayName, &rec.Role, &rec.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, pgx.ErrNoRows
	}
	return rec, err
}

// Add inserts a member row. Conflicts on global_user_id update the profile
// fields so re-granting a membership refreshes the row.
func (m *Members) Add(ctx context.Context, rec Member) error {
	session, ok := persistence.RequestSession(ctx)
	if !ok {
		return ErrNoSession
	}

	_, err := session.Exec(ctx, `
        INSERT INTO members (id, global_user_id, email, display_name, role, joined_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (global_user_id) DO UPDATE
        SET email = EXCLUDED.email, display_name = EXCLUDED.display_name, role = EXCLUDED.role`,
		rec.ID, rec.GlobalUserID, rec.Email, rec.DisplayName, rec.Role, rec.JoinedAt)
	return err
}

// Remove deletes a member row by global user id.
func (m *Members) Remove(ctx context.Context, globalUserID uuid.UUID) error {
	session, ok := persistence.RequestSession(ctx)
	if !ok {
		return ErrNoSession
	}

	_, err := session.Exec(ctx, `DELETE FROM members WHERE global_user_id = $1`, globalUserID)
	return err
}
