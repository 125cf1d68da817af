package bootstrap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gradnet-io/gradnet/platform/go/persistence"
)

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources (default schema, first operator)",
	}

	cmd.AddCommand(platformCommand())
	return cmd
}

func platformCommand() *cobra.Command {
	var (
		databaseURL   string
		defaultSchema string
		adminEmail    string
		adminID       string
	)

	c := &cobra.Command{
		Use:   "platform",
		Short: "Create the default schema, registry tables, and the first super admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL})
			if err != nil {
				return fmt.Errorf("init pool: %w", err)
			}
			defer persistence.ClosePool(pool)

			if err := persistence.BootstrapDefaultSchema(ctx, pool, defaultSchema); err != nil {
				return fmt.Errorf("bootstrap default schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "default schema %q ready\n", defaultSchema)

			if adminEmail == "" {
				return nil
			}

			id := uuid.New()
			if adminID != "" {
				parsed, err := uuid.Parse(adminID)
				if err != nil {
					return fmt.Errorf("parse admin id: %w", err)
				}
				id = parsed
			}

			query := fmt.Sprintf(`
                INSERT INTO %s.global_users (id, email, super_admin, created_at)
                VALUES ($1, $2, TRUE, now())
                ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, super_admin = TRUE`,
				defaultSchema)
			if _, err := pool.Exec(ctx, query, id, adminEmail); err != nil {
				return fmt.Errorf("seed super admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "super admin %s (%s) ready\n", adminEmail, id)

			return nil
		},
	}

	c.Flags().StringVar(&databaseURL, "database-url", "", "Postgres connection string")
	c.Flags().StringVar(&defaultSchema, "default-schema", "gradnet", "default (shared) schema name")
	c.Flags().StringVar(&adminEmail, "admin-email", "", "seed a super admin with this email")
	c.Flags().StringVar(&adminID, "admin-id", "", "uuid for the seeded super admin (random when omitted)")

	_ = c.MarkFlagRequired("database-url")

	return c
}
