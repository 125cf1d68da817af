package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

// ErrSchemaSwitch wraps search path switch failures. Callers must treat it as
// fatal for the request: continuing would silently address the previous
// partition.
var ErrSchemaSwitch = errors.New("schema switch failed")

// txBeginner exposes the minimal pgx pool behaviour needed by the tx-scoped API.
type txBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TenantDB wraps a pgx pool to execute queries within a tenant-specific
// search_path. The default (admin) schema holds the registry, memberships and
// the audit trail; tenant schemas hold partitioned application data.
type TenantDB struct {
	pool          *pgxpool.Pool
	beginner      txBeginner
	defaultSchema string
}

type TenantDBConfig struct {
	Pool          *pgxpool.Pool
	DefaultSchema string
}

func NewTenantDB(cfg TenantDBConfig) *TenantDB {
	if cfg.Pool == nil {
		panic("TenantDB requires pool")
	}

	defaultSchema := strings.TrimSpace(cfg.DefaultSchema)
	if defaultSchema == "" {
		panic("TenantDB requires default schema")
	}
	return &TenantDB{pool: cfg.Pool, beginner: cfg.Pool, defaultSchema: defaultSchema}
}

// WithDefault executes fn inside a transaction scoped to the default schema only.
func (db *TenantDB) WithDefault(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.beginner.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, db.defaultSchema); err != nil {
		return fmt.Errorf("set search_path: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// WithTenant executes fn inside a transaction with search_path set to the
// tenant schema plus the default schema. set_config with is_local=true keeps
// the change transaction-scoped, so the connection returns to the pool clean
// on every exit path via the deferred rollback.
func (db *TenantDB) WithTenant(ctx context.Context, t *tenant.Tenant, fn func(tx pgx.Tx) error) error {
	if t == nil || strings.TrimSpace(t.SchemaName) == "" {
		return fmt.Errorf("tenant schema name is required")
	}

	tx, err := db.beginner.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	searchPath := fmt.Sprintf("%s, %s", t.SchemaName, db.defaultSchema)
	if _, err = tx.Exec(ctx, `SELECT set_config('search_path', $1, true)`, searchPath); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaSwitch, err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Acquire checks a dedicated connection out of the pool for the duration of a
// request. The returned session implements tenant.SchemaSession.
func (db *TenantDB) Acquire(ctx context.Context) (*Session, error) {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Session{
		conn:          conn,
		release:       conn.Release,
		destroy:       func() { _ = conn.Conn().Close(context.Background()) },
		defaultSchema: db.defaultSchema,
	}, nil
}

// Switcher exposes the session API through the tenant package seam.
func (db *TenantDB) Switcher() tenant.SchemaSwitcher {
	return tenant.SwitcherFunc(func(ctx context.Context) (tenant.SchemaSession, error) {
		return db.Acquire(ctx)
	})
}

// sessionConn is the slice of *pgxpool.Conn behaviour the session relies on.
type sessionConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Session is one pooled connection whose active search_path follows the
// request's resolved tenant. Because the underlying connection is reused
// across requests, a session must never return to the pool without its search
// path reset; Release enforces that on every exit path.
type Session struct {
	mu            sync.Mutex
	conn          sessionConn
	release       func()
	destroy       func()
	defaultSchema string
	switched      bool
	released      bool
}

// SwitchTo points the connection at the tenant's schema partition.
func (s *Session) SwitchTo(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return fmt.Errorf("session already released")
	}
	if t == nil || strings.TrimSpace(t.SchemaName) == "" {
		return fmt.Errorf("%w: tenant schema name is required", ErrSchemaSwitch)
	}

	searchPath := fmt.Sprintf("%s, %s", t.SchemaName, s.defaultSchema)
	if _, err := s.conn.Exec(ctx, `SELECT set_config('search_path', $1, false)`, searchPath); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaSwitch, err)
	}

	s.switched = true
	return nil
}

// ResetToDefault pins the connection to the default partition. The reset is
// issued unconditionally: a pooled connection can arrive with a search path
// left by any other user of the pool, so skipping the statement on an
// unswitched session would let that path leak into the caller's queries.
// Calling it twice in a row is harmless.
func (s *Session) ResetToDefault(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(ctx)
}

func (s *Session) resetLocked(ctx context.Context) error {
	if s.released {
		return nil
	}
	if _, err := s.conn.Exec(ctx, `SELECT set_config('search_path', $1, false)`, s.defaultSchema); err != nil {
		return fmt.Errorf("reset search_path: %w", err)
	}
	s.switched = false
	return nil
}

// Release resets the search path and returns the connection to the pool. When
// the reset itself fails the underlying connection is closed instead of being
// returned, so a dirty search path can never leak into another request.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return
	}
	s.released = true

	if s.switched {
		if _, err := s.conn.Exec(context.Background(), `SELECT set_config('search_path', $1, false)`, s.defaultSchema); err != nil {
			s.destroy()
		}
		s.switched = false
	}
	s.release()
}

// Exec runs a statement on the session's connection.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

// Query runs a query on the session's connection.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.conn.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query on the session's connection.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.conn.QueryRow(ctx, sql, args...)
}

// RequestSession extracts the request-scoped session placed on the context by
// the resolution pipeline.
func RequestSession(ctx context.Context) (*Session, bool) {
	raw, ok := tenant.SessionFrom(ctx)
	if !ok {
		return nil, false
	}
	s, ok := raw.(*Session)
	return s, ok
}
