package tenantcmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradnet-io/gradnet/domains/tenants/be/service"
	"github.com/gradnet-io/gradnet/platform/go/audit"
	"github.com/gradnet-io/gradnet/platform/go/persistence"
)

// Command groups tenant registry helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant registry utilities (create/list)",
	}

	cmd.AddCommand(createCommand())
	cmd.AddCommand(listCommand())
	return cmd
}

func createCommand() *cobra.Command {
	var (
		databaseURL   string
		defaultSchema string
		name          string
		subdomain     string
		customDomain  string
		slug          string
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a tenant and provision its schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, pool, err := buildService(ctx, databaseURL, defaultSchema)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			input := service.CreateInput{
				Name:      name,
				Subdomain: subdomain,
				Slug:      slug,
			}
			if customDomain != "" {
				input.CustomDomain = &customDomain
			}

			rec, err := svc.Create(ctx, input)
			if err != nil {
				return fmt.Errorf("create tenant: %w", err)
			}

			// The CLI has no background audit worker, so the trail entry is
			// written synchronously.
			if store, err := persistence.NewAuditStore(ctx, pool, defaultSchema); err == nil {
				entry := audit.Entry{
					ID:       uuid.New(),
					Action:   audit.ActionTenantProvisioned,
					Severity: audit.SeverityMedium,
					Detail: map[string]any{
						"tenant_id": rec.ID.String(),
						"slug":      rec.Slug,
						"schema":    rec.SchemaName,
					},
					CreatedAt: time.Now().UTC(),
				}
				if err := store.Append(ctx, entry); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: audit entry not written: %v\n", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s created (id=%s schema=%s ready=%t)\n",
				rec.Slug, rec.ID, rec.SchemaName, rec.SchemaReady)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")
	c.Flags().StringVar(&defaultSchema, "default-schema", "gradnet", "default (shared) schema name")
	c.Flags().StringVar(&name, "name", "", "tenant display name")
	c.Flags().StringVar(&subdomain, "subdomain", "", "tenant subdomain label")
	c.Flags().StringVar(&customDomain, "custom-domain", "", "optional custom domain")
	c.Flags().StringVar(&slug, "slug", "", "tenant slug")

	_ = c.MarkFlagRequired("database-url")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("subdomain")
	_ = c.MarkFlagRequired("slug")

	return c
}

func listCommand() *cobra.Command {
	var (
		databaseURL   string
		defaultSchema string
		status        string
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			svc, pool, err := buildService(ctx, databaseURL, defaultSchema)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			opts := service.ListOptions{Page: 1, PageSize: 100}
			if status != "" {
				opts.Status = &status
			}

			result, err := svc.List(ctx, opts)
			if err != nil {
				return fmt.Errorf("list tenants: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSLUG\tSCHEMA\tSTATUS\tREADY")
			for _, rec := range result.Tenants {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
					rec.ID, rec.Slug, rec.SchemaName, rec.Status, rec.SchemaReady)
			}
			return w.Flush()
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")
	c.Flags().StringVar(&defaultSchema, "default-schema", "gradnet", "default (shared) schema name")
	c.Flags().StringVar(&status, "status", "", "filter by status (active, inactive, suspended)")

	_ = c.MarkFlagRequired("database-url")

	return c
}

func buildService(ctx context.Context, databaseURL, defaultSchema string) (*service.Service, *pgxpool.Pool, error) {
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("init pool: %w", err)
	}

	store, err := persistence.NewTenantStore(ctx, pool, defaultSchema)
	if err != nil {
		persistence.ClosePool(pool)
		return nil, nil, fmt.Errorf("init tenant store: %w", err)
	}

	provisioner := service.ProvisionerFunc(func(ctx context.Context, schemaName string) error {
		return persistence.EnsureTenantSchema(ctx, pool, schemaName)
	})

	svc := service.New(store, provisioner, nil, nil, zap.NewNop())
	return svc, pool, nil
}
