package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

// TenantRecord represents one tenant registry row.
type TenantRecord struct {
	ID                 uuid.UUID  `db:"id"`
	Name               string     `db:"name"`
	Subdomain          string     `db:"subdomain"`
	CustomDomain       *string    `db:"custom_domain"`
	Slug               string     `db:"slug"`
	SchemaName         string     `db:"schema_name"`
	Status             string     `db:"status"`
	SubscriptionActive bool       `db:"subscription_active"`
	SchemaReady        bool       `db:"schema_ready"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          *time.Time `db:"updated_at"`
}

const tenantColumns = `id, name, subdomain, custom_domain, slug, schema_name,
            status, subscription_active, schema_ready, created_at, updated_at`

// TenantStore provides access to the tenant registry table.
type TenantStore struct {
	db    DB
	table string
}

// NewTenantStore creates a store; assumes migrations already created the table.
func NewTenantStore(ctx context.Context, db DB, defaultSchema string) (*TenantStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	schema, err := normalizeIdentifier(defaultSchema)
	if err != nil {
		return nil, fmt.Errorf("default schema: %w", err)
	}
	return &TenantStore{db: db, table: schema + ".tenants"}, nil
}

// FindByIdentifier implements the directory lookup behind the resolver.
func (s *TenantStore) FindByIdentifier(ctx context.Context, identifier string, kind tenant.IdentifierKind) (*tenant.Tenant, error) {
	var column string
	switch kind {
	case tenant.IdentifierSubdomain:
		column = "subdomain"
	case tenant.IdentifierDomain:
		column = "custom_domain"
	case tenant.IdentifierSlug:
		column = "slug"
	default:
		return nil, fmt.Errorf("%w: unknown identifier kind %q", tenant.ErrInvalidIdentifier, kind)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, tenantColumns, s.table, column)

	rec, err := scanTenantRecord(s.db.QueryRow(ctx, query, strings.ToLower(identifier)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant by %s: %w", kind, err)
	}

	return recordToTenant(rec), nil
}

// GetByID returns one tenant registry row.
func (s *TenantStore) GetByID(ctx context.Context, id uuid.UUID) (TenantRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, tenantColumns, s.table)
	rec, err := scanTenantRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, tenant.ErrNotFound
		}
		return TenantRecord{}, fmt.Errorf("get tenant: %w", err)
	}
	return rec, nil
}

// Create inserts a tenant registry row.
func (s *TenantStore) Create(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	if rec.ID == uuid.Nil {
		return TenantRecord{}, errors.New("tenant id is required")
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (
            id, name, subdomain, custom_domain, slug, schema_name,
            status, subscription_active, schema_ready, created_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING %s
    `, s.table, tenantColumns)

	row := s.db.QueryRow(ctx, query,
		rec.ID, rec.Name, rec.Subdomain, rec.CustomDomain, rec.Slug,
		rec.SchemaName, rec.Status, rec.SubscriptionActive, rec.SchemaReady, rec.CreatedAt,
	)

	return scanTenantRecord(row)
}

// List returns registry rows with an optional status filter, newest first.
func (s *TenantStore) List(ctx context.Context, status *string, limit, offset int) ([]TenantRecord, int, error) {
	where := ""
	args := []any{}
	if status != nil {
		where = "WHERE status = $1"
		args = append(args, *status)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s %s`, s.table, where)
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	query := fmt.Sprintf(`
        SELECT %s FROM %s %s
        ORDER BY created_at DESC
        LIMIT $%d OFFSET $%d
    `, tenantColumns, s.table, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []TenantRecord
	for rows.Next() {
		rec, err := scanTenantRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

// UpdateStatus changes the lifecycle status of a tenant.
func (s *TenantStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (TenantRecord, error) {
	query := fmt.Sprintf(`
        UPDATE %s SET status = $2, updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, s.table, tenantColumns)

	rec, err := scanTenantRecord(s.db.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TenantRecord{}, tenant.ErrNotFound
		}
		return TenantRecord{}, fmt.Errorf("update tenant status: %w", err)
	}
	return rec, nil
}

// MarkSchemaReady flips the provisioning flag once the partition exists.
func (s *TenantStore) MarkSchemaReady(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`UPDATE %s SET schema_ready = TRUE, updated_at = now() WHERE id = $1`, s.table)
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark schema ready: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTenantRecord(row rowScanner) (TenantRecord, error) {
	var rec TenantRecord
	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Subdomain, &rec.CustomDomain, &rec.Slug,
		&rec.SchemaName, &rec.Status, &rec.SubscriptionActive, &rec.SchemaReady,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func recordToTenant(rec TenantRecord) *tenant.Tenant {
	t := &tenant.Tenant{
		ID:                 rec.ID,
		Name:               rec.Name,
		Subdomain:          rec.Subdomain,
		Slug:               rec.Slug,
		SchemaName:         rec.SchemaName,
		Status:             tenant.StatusFromString(rec.Status),
		SubscriptionActive: rec.SubscriptionActive,
		SchemaReady:        rec.SchemaReady,
	}
	if rec.CustomDomain != nil {
		t.CustomDomain = *rec.CustomDomain
	}
	return t
}
