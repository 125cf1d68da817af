package schema

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gradnet-io/gradnet/platform/go/persistence"
	"github.com/gradnet-io/gradnet/platform/go/tenant"
)

// Command groups schema helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Tenant schema utilities",
	}

	cmd.AddCommand(ensureCommand())
	return cmd
}

func ensureCommand() *cobra.Command {
	var (
		databaseURL string
		slug        string
		schemaName  string
	)

	c := &cobra.Command{
		Use:   "ensure",
		Short: "Create a tenant schema and its base tables if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			name := schemaName
			if name == "" {
				if !tenant.ValidSlug(slug) {
					return fmt.Errorf("invalid slug %q", slug)
				}
				name = tenant.BuildSchemaName(tenant.ToSnake(slug))
			}

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.EnsureTenantSchema(ctx, pool, name); err != nil {
				return fmt.Errorf("ensure schema %s: %w", name, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "schema %q ready\n", name)
			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")
	c.Flags().StringVar(&slug, "slug", "", "tenant slug (schema name derived from it)")
	c.Flags().StringVar(&schemaName, "schema", "", "explicit schema name (overrides --slug)")

	_ = c.MarkFlagRequired("database-url")

	return c
}
