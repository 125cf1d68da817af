package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/gradnet-io/gradnet/database"
)

// BootstrapDefaultSchema creates the default (admin) schema if missing and
// applies the platform DDL in a single transaction: global_users, tenants,
// user_tenants, audit_trail. SQL is embedded at build time so binaries stay
// self-contained. Idempotent; intended for CLI bootstrap and tests.
func BootstrapDefaultSchema(ctx context.Context, pool *pgxpool.Pool, defaultSchema string) error {
	if pool == nil {
		return fmt.Errorf("bootstrap default schema: pool is required")
	}
	schema, err := normalizeIdentifier(defaultSchema)
	if err != nil {
		return fmt.Errorf("bootstrap default schema: %w", err)
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.GlobalUsersSQL)...)
	statements = append(statements, splitStatements(sqlassets.TenantsSQL)...)
	statements = append(statements, splitStatements(sqlassets.UserTenantsSQL)...)
	statements = append(statements, splitStatements(sqlassets.AuditTrailSQL)...)

	return applyDDL(ctx, pool, schema, statements)
}

// EnsureTenantSchema creates a tenant's schema partition if missing and
// applies the per-tenant base DDL inside it. This must succeed before the
// tenant is marked schema_ready; the resolution pipeline refuses to switch to
// partitions that were never provisioned.
func EnsureTenantSchema(ctx context.Context, pool *pgxpool.Pool, schemaName string) error {
	if pool == nil {
		return fmt.Errorf("ensure tenant schema: pool is required")
	}
	schema, err := normalizeIdentifier(schemaName)
	if err != nil {
		return fmt.Errorf("ensure tenant schema: %w", err)
	}

	return applyDDL(ctx, pool, schema, splitStatements(sqlassets.MembersSQL))
}

func applyDDL(ctx context.Context, pool *pgxpool.Pool, schema string, statements []string) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, schema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// splitStatements breaks an embedded SQL asset into individual statements.
// Good enough for the bootstrap DDL, which contains no string literals with
// semicolons.
func splitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
