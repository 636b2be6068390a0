package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "convoy",
		Short: "Convoy - Agentless Fleet Configuration Engine",
		Long: `Convoy drives configuration modules on managed hosts without a
resident agent. Modules are plain executables that receive their
arguments over a single environment variable and report a JSON result
on stdout.

Features:
  - One-shot module invocation with bounded parallelism
  - Static and dynamic inventory sources with layered host variables
  - Starlark-constructed inventories
  - TTL-based result cache backed by SQLite
  - Policy gating of invocations via Rego`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInvokeCommand())
	rootCmd.AddCommand(newInventoryCommand())
	rootCmd.AddCommand(newCacheCommand())
	rootCmd.AddCommand(newPolicyCommand())

	return rootCmd
}
