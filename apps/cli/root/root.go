package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the GradNet admin CLI. Subcommands (auth,
// bootstrap, tenant, schema) are attached here.
var rootCmd = &cobra.Command{
	Use:           "gradnet",
	Short:         "GradNet admin CLI",
	Long:          "Administrative utilities for GradNet (dev tokens, bootstrap helpers, tenant management).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
