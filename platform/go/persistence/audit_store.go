package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gradnet-io/gradnet/platform/go/audit"
)

// AuditStore appends audit trail entries. The table is append-only; no update
// or delete statements exist here.
type AuditStore struct {
	db    DB
	table string
}

// NewAuditStore creates a store; assumes migrations already created the table.
func NewAuditStore(ctx context.Context, db DB, defaultSchema string) (*AuditStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	schema, err := normalizeIdentifier(defaultSchema)
	if err != nil {
		return nil, fmt.Errorf("default schema: %w", err)
	}
	return &AuditStore{db: db, table: schema + ".audit_trail"}, nil
}

// Append writes one entry.
func (s *AuditStore) Append(ctx context.Context, entry audit.Entry) error {
	return s.AppendBatch(ctx, []audit.Entry{entry})
}

// AppendBatch bulk-inserts entries via pgx batching.
func (s *AuditStore) AppendBatch(ctx context.Context, entries []audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
        INSERT INTO %s (id, actor_id, action, severity, detail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, s.table)

	batch := &pgx.Batch{}
	for _, e := range entries {
		detail, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("encode audit detail: %w", err)
		}
		batch.Queue(query, e.ID, e.ActorID, e.Action, string(e.Severity), detail, e.CreatedAt)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close() // nolint:errcheck

	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("append audit entry: %w", err)
		}
	}
	return nil
}

// Recent returns the newest entries, for the admin inspection endpoint.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
        SELECT id, actor_id, action, severity, detail, created_at
        FROM %s
        ORDER BY created_at DESC
        LIMIT $1
    `, s.table)

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var detail []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Severity, &detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
