package tenant

import "context"

// SchemaSession is a request-scoped handle on one database connection whose
// active schema search path can be switched. SwitchTo is the acquire and
// ResetToDefault the release of a guaranteed-release pair: the pipeline defers
// Release so the reset runs on every exit path, including panics, before the
// connection can be reused by another request.
type SchemaSession interface {
	// SwitchTo points the connection at the tenant's schema. A failure is
	// fatal for the request; the caller must not continue on the previous
	// partition.
	SwitchTo(ctx context.Context, t *Tenant) error
	// ResetToDefault restores the default partition. Idempotent; safe to call
	// when already on default.
	ResetToDefault(ctx context.Context) error
	// Release resets the search path and returns the connection to the pool.
	// Safe to call more than once.
	Release()
}

// SchemaSwitcher hands out schema sessions.
type SchemaSwitcher interface {
	Acquire(ctx context.Context) (SchemaSession, error)
}

// SwitcherFunc adapts a function to the SchemaSwitcher interface.
type SwitcherFunc func(ctx context.Context) (SchemaSession, error)

func (f SwitcherFunc) Acquire(ctx context.Context) (SchemaSession, error) { return f(ctx) }

const sessionKey ctxKey = "GRADNET_SCHEMA_SESSION"

// WithSession stores the request's schema session on the context so
// repositories address the partition the pipeline switched to.
func WithSession(ctx context.Context, s SchemaSession) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom extracts the request's schema session.
func SessionFrom(ctx context.Context) (SchemaSession, bool) {
	s, ok := ctx.Value(sessionKey).(SchemaSession)
	return s, ok && s != nil
}
