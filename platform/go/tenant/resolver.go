package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// OutcomeKind discriminates the terminal resolution results the HTTP boundary
// maps to responses.
type OutcomeKind string

const (
	OutcomeResolved OutcomeKind = "resolved"
	OutcomeNotFound OutcomeKind = "not_found"
	OutcomeInactive OutcomeKind = "inactive"
)

// Outcome is the result of running the resolution strategy chain. NotFound and
// Inactive are normal outcomes the caller branches on, not errors.
type Outcome struct {
	Kind     OutcomeKind
	Tenant   *Tenant
	Strategy string
	Reason   string
}

// Resolver evaluates resolution strategies in fixed priority order,
// short-circuiting on the first strategy whose candidate identifier matches a
// tenant in the directory.
type Resolver struct {
	directory           Directory
	strategies          []Strategy
	requireSubscription bool
	logger              *zap.Logger
}

// ResolverConfig carries the resolver dependencies and policy toggles.
type ResolverConfig struct {
	Directory           Directory
	Strategies          []Strategy
	RequireSubscription bool
	Logger              *zap.Logger
}

// NewResolver constructs a Resolver with required dependencies.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.Directory == nil {
		panic("tenant resolver: directory is required")
	}
	if len(cfg.Strategies) == 0 {
		panic("tenant resolver: at least one strategy is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		directory:           cfg.Directory,
		strategies:          cfg.Strategies,
		requireSubscription: cfg.RequireSubscription,
		logger:              logger,
	}
}

// Resolve runs the strategy chain against the inbound request. A non-nil error
// is returned only for genuine failures (directory unreachable); "no tenant
// matched" and "tenant found but inactive" are Outcome values.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (Outcome, error) {
	for _, s := range r.strategies {
		identifier, kind, ok := s.Identify(req)
		if !ok {
			continue
		}

		t, err := r.directory.FindByIdentifier(ctx, identifier, kind)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Outcome{}, fmt.Errorf("lookup tenant %s=%q: %w", kind, identifier, err)
		}

		if reason := t.InactiveReason(r.requireSubscription); reason != "" {
			if !t.SchemaReady {
				// Schema missing on an otherwise registered tenant points at a
				// provisioning bug, not a client mistake.
				r.logger.Error("tenant schema missing",
					zap.String("tenant_id", t.ID.String()),
					zap.String("schema", t.SchemaName),
				)
			}
			return Outcome{Kind: OutcomeInactive, Tenant: t, Strategy: s.Name(), Reason: reason}, nil
		}

		return Outcome{Kind: OutcomeResolved, Tenant: t, Strategy: s.Name()}, nil
	}

	return Outcome{Kind: OutcomeNotFound}, nil
}
