package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	membershipshandler "github.com/gradnet-io/gradnet/domains/memberships/be/handler"
	membershipsrepo "github.com/gradnet-io/gradnet/domains/memberships/be/repo"
	membershipsservice "github.com/gradnet-io/gradnet/domains/memberships/be/service"
	tenantshandler "github.com/gradnet-io/gradnet/domains/tenants/be/handler"
	tenantsservice "github.com/gradnet-io/gradnet/domains/tenants/be/service"
	"github.com/gradnet-io/gradnet/platform/go/audit"
	platformauth "github.com/gradnet-io/gradnet/platform/go/auth"
	platformlogging "github.com/gradnet-io/gradnet/platform/go/logging"
	platformmiddleware "github.com/gradnet-io/gradnet/platform/go/middleware"
	"github.com/gradnet-io/gradnet/platform/go/persistence"
	"github.com/gradnet-io/gradnet/platform/go/tenant"
	tenantmiddleware "github.com/gradnet-io/gradnet/platform/go/tenant/middleware"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	DefaultSchema   string        `env:"DEFAULT_SCHEMA" envDefault:"gradnet"`
	AuthProvider    string        `env:"AUTH_PROVIDER" envDefault:"hmac"`
	JWTSecret       string        `env:"JWT_SECRET"`
	CacheTTL        time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	MaxTargets      int           `env:"MAX_CROSS_TENANT_TARGETS" envDefault:"10"`
	RequireSub      bool          `env:"REQUIRE_SUBSCRIPTION" envDefault:"true"`
	Redis           tenant.RedisConfig
}

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if err := persistence.BootstrapDefaultSchema(ctx, pool, cfg.DefaultSchema); err != nil {
		logger.Fatal("bootstrap default schema", zap.Error(err))
	}

	cache := buildCache(ctx, cfg, logger)
	defer func() {
		_ = cache.Close()
	}()

	tenantStore, err := persistence.NewTenantStore(ctx, pool, cfg.DefaultSchema)
	if err != nil {
		logger.Fatal("init tenant store", zap.Error(err))
	}
	membershipStore, err := persistence.NewMembershipStore(ctx, pool, cfg.DefaultSchema)
	if err != nil {
		logger.Fatal("init membership store", zap.Error(err))
	}
	auditStore, err := persistence.NewAuditStore(ctx, pool, cfg.DefaultSchema)
	if err != nil {
		logger.Fatal("init audit store", zap.Error(err))
	}

	auditor := audit.NewLogger(audit.Config{Store: auditStore, Logger: logger})

	directory := tenant.NewCachedDirectory(tenantStore, cache, cfg.CacheTTL)
	memberships := tenant.NewCachedMemberships(membershipStore, cache, cfg.CacheTTL)

	resolver := tenant.NewResolver(tenant.ResolverConfig{
		Directory: directory,
		Strategies: []tenant.Strategy{
			tenant.NewSubdomainStrategy(nil),
			tenant.DomainStrategy{},
			tenant.NewHeaderStrategy(""),
			tenant.NewQueryStrategy(""),
			tenant.NewSessionStrategy(""),
		},
		RequireSubscription: cfg.RequireSub,
		Logger:              logger,
	})

	validator := tenant.NewValidator(tenant.ValidatorConfig{
		Memberships:           memberships,
		MaxCrossTenantTargets: cfg.MaxTargets,
	})

	tenantDB := persistence.NewTenantDB(persistence.TenantDBConfig{
		Pool:          pool,
		DefaultSchema: cfg.DefaultSchema,
	})

	registry := tenant.NewRouteRegistry()
	pipeline := tenantmiddleware.NewPipeline(tenantmiddleware.Config{
		Resolver:      resolver,
		Validator:     validator,
		Registry:      registry,
		Switcher:      tenantDB.Switcher(),
		Directory:     directory,
		Auditor:       auditor,
		Logger:        logger,
		SessionCookie: tenant.DefaultSessionCookie,
		HitCounter:    cache,
	})

	provisioner := tenantsservice.ProvisionerFunc(func(ctx context.Context, schemaName string) error {
		return persistence.EnsureTenantSchema(ctx, pool, schemaName)
	})
	tenantService := tenantsservice.New(tenantStore, provisioner, directory, auditor, logger)
	tenantHTTPHandler := tenantshandler.New(tenantService, logger)

	membersRepo := membershipsrepo.NewMembers()
	membershipService := membershipsservice.New(membershipStore, membersRepo, memberships, auditor)
	membershipHTTPHandler := membershipshandler.New(membershipService, logger)

	authMiddleware := buildAuthMiddleware(cfg, logger)

	rootRouter := chi.NewRouter()
	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)
	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(authMiddleware)
	apiRouter.Use(platformmiddleware.RequestTrace)
	apiRouter.Use(pipeline.Middleware())

	registry.Handle(apiRouter, http.MethodGet, "/tenant",
		tenant.SingleTenant(""), func(w http.ResponseWriter, r *http.Request) {
			t := tenant.MustFromContext(r.Context())
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":        t.ID,
				"name":      t.Name,
				"slug":      t.Slug,
				"subdomain": t.Subdomain,
				"schema":    t.SchemaName,
				"status":    string(t.Status),
			})
		})
	registry.Handle(apiRouter, http.MethodGet, "/me",
		tenant.SingleTenant(""), func(w http.ResponseWriter, r *http.Request) {
			principal, ok := platformauth.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "access denied", http.StatusForbidden)
				return
			}
			u, err := membershipStore.GetGlobalUser(r.Context(), principal.ID)
			if err != nil {
				if errors.Is(err, tenant.ErrGlobalUserNotFound) {
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				logger.Error("global user lookup failed", zap.Error(err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":                u.ID,
				"email":             u.Email,
				"default_tenant_id": u.DefaultTenantID,
				"super_admin":       u.SuperAdmin,
			})
		})
	registry.Handle(apiRouter, http.MethodGet, "/me/memberships",
		tenant.SingleTenant(""), membershipHTTPHandler.ListMine)
	registry.Handle(apiRouter, http.MethodGet, "/members",
		tenant.SingleTenant("members.read"), membershipHTTPHandler.ListMembers)
	registry.Handle(apiRouter, http.MethodPost, "/members",
		tenant.SingleTenant("members.manage"), membershipHTTPHandler.Grant)
	registry.Handle(apiRouter, http.MethodDelete, "/members/{userID}",
		tenant.SingleTenant("members.manage"), membershipHTTPHandler.Revoke)
	registry.Handle(apiRouter, http.MethodGet, "/network/members",
		tenant.CrossTenant("members.read"), membershipHTTPHandler.ListMembers)

	registry.Handle(apiRouter, http.MethodGet, "/admin/tenants",
		tenant.Global(), tenantHTTPHandler.List)
	registry.Handle(apiRouter, http.MethodPost, "/admin/tenants",
		tenant.Global(), tenantHTTPHandler.Create)
	registry.Handle(apiRouter, http.MethodGet, "/admin/tenants/{tenantID}",
		tenant.Global(), tenantHTTPHandler.Get)
	registry.Handle(apiRouter, http.MethodPatch, "/admin/tenants/{tenantID}/status",
		tenant.Global(), tenantHTTPHandler.UpdateStatus)
	registry.Handle(apiRouter, http.MethodPost, "/admin/tenants/{tenantID}/provision",
		tenant.Global(), tenantHTTPHandler.Provision)
	registry.Handle(apiRouter, http.MethodGet, "/admin/audit",
		tenant.Global(), func(w http.ResponseWriter, r *http.Request) {
			limit := 50
			if v := r.URL.Query().Get("limit"); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					limit = n
				}
			}
			entries, err := auditStore.Recent(r.Context(), limit)
			if err != nil {
				logger.Error("audit listing failed", zap.Error(err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"items": entries})
		})

	rootRouter.Mount("/api/v1", apiRouter)
	pipeline.BindRoutes(apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := auditor.Close(shutdownCtx); err != nil {
		logger.Error("audit logger drain failed", zap.Error(err))
	}
}

// buildCache connects Redis when REDIS_URL is set and falls back to the
// in-process cache otherwise.
func buildCache(ctx context.Context, cfg config, logger *zap.Logger) tenant.Cache {
	if cfg.Redis.URL == "" {
		logger.Info("using in-memory tenant cache")
		return tenant.NewMemoryCache()
	}

	client, err := tenant.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("connect redis", zap.Error(err))
	}
	logger.Info("using redis tenant cache")
	return tenant.NewRedisCache(client, "")
}
