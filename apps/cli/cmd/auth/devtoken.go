package auth

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gradnet-io/gradnet/platform/go/auth/devtoken"
)

// Command groups auth helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Auth utilities (dev tokens)",
	}

	cmd.AddCommand(devTokenCommand())
	return cmd
}

func devTokenCommand() *cobra.Command {
	var params devtoken.Params
	var secret string
	var expiresIn time.Duration

	cmd := &cobra.Command{
		Use:   "devtoken",
		Short: "Generate an HS256-signed JWT for dev/local use",
		RunE: func(cmd *cobra.Command, args []string) error {
			params.ExpiresIn = expiresIn

			token, err := devtoken.BuildToken(params, []byte(secret), time.Now().UTC())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&params.UserID, "user-id", "", "sub claim (uuid)")
	cmd.Flags().StringVar(&params.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC signing secret (must match JWT_SECRET)")

	cmd.Flags().StringVar(&params.Name, "name", "", "display name")
	cmd.Flags().BoolVar(&params.EmailVerified, "email-verified", true, "email_verified claim")
	cmd.Flags().BoolVar(&params.SuperAdmin, "super-admin", false, "set super_admin=true")
	cmd.Flags().BoolVar(&params.GlobalUser, "global-user", false, "set global_user=true")
	cmd.Flags().StringVar(&params.DefaultTenant, "default-tenant", "", "default_tenant claim (uuid)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", time.Hour, "token lifetime (e.g. 30m, 2h)")
	cmd.Flags().StringVar(&params.Issuer, "issuer", "", "override iss")

	_ = cmd.MarkFlagRequired("user-id")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("secret")

	return cmd
}
