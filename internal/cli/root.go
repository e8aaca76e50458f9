package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
)

// NewRootCmd creates the root command for provisioner
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "provisioner",
		Short: "provisioner - analytics account provisioning service",
		Long: `provisioner connects a site to an analytics account. It:
  1. Requests account tickets from the analytics Provisioning API
  2. Reconciles the callback the user is redirected to after accepting the terms
  3. Links existing properties and profiles directly

Resolved identifiers are committed to the settings store as a single unit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default: ./configs/provisioner.yaml if present)")

	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
