package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/convoyops/convoy/pkg/inventory"
)

func newInventoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inventory inspection",
		Long: `Resolve the configured inventory sources and inspect the result.

Static files and dynamic executables share one document schema: groups
with hosts, children and vars, plus per-host variables. Multiple
sources merge in configuration order, later sources overlaying earlier
ones.`,
	}

	cmd.AddCommand(newInventoryListCommand())
	cmd.AddCommand(newInventoryHostCommand())
	cmd.AddCommand(newInventoryGraphCommand())
	cmd.AddCommand(newInventoryWatchCommand())

	return cmd
}

func newInventoryListCommand() *cobra.Command {
	var pattern string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resolved hosts and groups",
		Example: `  # List all hosts
  convoy inventory list

  # List hosts matching a pattern
  convoy inventory list --pattern 'web*'

  # Full document as JSON
  convoy inventory list --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			inv, err := a.resolveInventory(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				data, err := json.MarshalIndent(inv.Document(), "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal inventory: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			hosts := inv.Hosts()
			if pattern != "" {
				hosts = inv.Match(pattern)
			}
			sort.Strings(hosts)

			for _, host := range hosts {
				fmt.Fprintln(cmd.OutOrStdout(), host)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "only hosts matching this pattern")

	return cmd
}

func newInventoryHostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host <name>",
		Short: "Show merged variables for a host",
		Long: `Display the fully merged variable set for one host.

Group variables apply in depth order from the root group down, so
variables from groups closer to the host win. Per-host variables always
take final precedence.`,
		Example: `  # Show merged vars for a host
  convoy inventory host web1.example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := args[0]

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			inv, err := a.resolveInventory(cmd.Context())
			if err != nil {
				return err
			}

			vars, err := inv.HostVars(host)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(vars, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal host vars: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	return cmd
}

func newInventoryWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-resolve the inventory when static sources change",
		Long: `Watch the configured static source files and run a fresh
resolution pass whenever one changes. Dynamic sources are not watched;
they re-execute as part of each pass. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			report := func(inv *inventory.Inventory) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d hosts in %d groups\n",
					len(inv.Hosts()), len(inv.Groups()))
			}

			inv, err := a.resolveInventory(ctx)
			if err != nil {
				return err
			}
			report(inv)

			sources := a.cfg.InventorySources()
			watcher, err := inventory.NewWatcher(func(path string) {
				a.logger.Info().Str("path", path).Msg("Inventory source changed")

				// Drop the memoized pass and resolve again
				a.inv = nil
				inv, err := a.resolveInventory(ctx)
				if err != nil {
					a.logger.Error().Err(err).Msg("Resolution failed")
					return
				}
				report(inv)
			}, a.logger)
			if err != nil {
				return err
			}
			defer watcher.Close()

			if err := watcher.Watch(sources...); err != nil {
				return err
			}

			watcher.Run(ctx)
			return nil
		},
	}

	return cmd
}

func newInventoryGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the group hierarchy",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			inv, err := a.resolveInventory(cmd.Context())
			if err != nil {
				return err
			}

			doc := inv.Document()
			names := doc.GroupNames()
			sort.Strings(names)

			for _, name := range names {
				group := doc.Groups[name]
				fmt.Fprintf(cmd.OutOrStdout(), "@%s:\n", name)

				children := append([]string(nil), group.Children...)
				sort.Strings(children)
				for _, child := range children {
					fmt.Fprintf(cmd.OutOrStdout(), "  |--@%s\n", child)
				}

				hosts := append([]string(nil), group.Hosts...)
				sort.Strings(hosts)
				for _, host := range hosts {
					fmt.Fprintf(cmd.OutOrStdout(), "  |--%s\n", host)
				}
			}
			return nil
		},
	}

	return cmd
}
