package commands

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/convoyops/convoy/pkg/stores"
)

func newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Result cache management",
		Long: `Inspect and manage the local result cache.

The cache stores module invocation results and resolved host variables
in a SQLite database. Entries carry a TTL and expire automatically;
expired rows are never served but stay on disk until pruned.`,
	}

	cmd.AddCommand(newCacheStatsCommand())
	cmd.AddCommand(newCachePurgeCommand())
	cmd.AddCommand(newCachePruneCommand())

	return cmd
}

func newCacheStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.requireStore(cmd.Context())
			if err != nil {
				return err
			}

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(stats, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Invocations: %d\n", stats.Invocations)
			fmt.Fprintf(cmd.OutOrStdout(), "Host vars:   %d\n", stats.HostVars)
			fmt.Fprintf(cmd.OutOrStdout(), "Expired:     %d\n", stats.Expired)
			return nil
		},
	}

	return cmd
}

func newCachePurgeCommand() *cobra.Command {
	var kindFlag string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove cache entries",
		Example: `  # Purge the whole cache
  convoy cache purge

  # Purge only cached invocation results
  convoy cache purge --kind invocation`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.requireStore(cmd.Context())
			if err != nil {
				return err
			}

			var kind *stores.CacheKind
			if kindFlag != "" {
				k := stores.CacheKind(kindFlag)
				kind = &k
			}

			purged, err := store.Purge(cmd.Context(), kind)
			if err != nil {
				return err
			}

			details := fmt.Sprintf(`{"purged":%d}`, purged)
			_ = store.CreateAuditEntry(cmd.Context(), &stores.AuditEntry{
				Action:    "cache.purged",
				Actor:     "cli",
				Details:   &details,
				Timestamp: time.Now().UTC(),
			})

			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d entries\n", purged)
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "", "restrict to one kind (invocation, hostvars)")

	return cmd
}

func newCachePruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			store, err := a.requireStore(cmd.Context())
			if err != nil {
				return err
			}

			pruned, err := store.DeleteExpired(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d expired entries\n", pruned)
			return nil
		},
	}

	return cmd
}
