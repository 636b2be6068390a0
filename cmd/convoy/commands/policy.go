package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/convoyops/convoy/pkg/policy"
)

func newPolicyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Policy inspection and testing",
		Long: `Inspect the loaded policies and test invocations against them.

Policies are Rego rules that gate module invocations. Built-in
policies ship with convoy; additional policies load from the paths in
the configuration file.`,
	}

	cmd.AddCommand(newPolicyListCommand())
	cmd.AddCommand(newPolicyTestCommand())

	return cmd
}

func newPolicyListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List loaded policies",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.policyEngine(cmd.Context())
			if err != nil {
				return err
			}
			if engine == nil {
				return fmt.Errorf("policy enforcement is disabled in configuration")
			}

			policies := engine.ListPolicies()

			if jsonOutput {
				data, _ := json.MarshalIndent(policies, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			for _, p := range policies {
				state := "enabled"
				if !p.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-8s %-9s %s\n", p.Name, p.Severity, state, p.Description)
			}
			return nil
		},
	}

	return cmd
}

func newPolicyTestCommand() *cobra.Command {
	var (
		argsJSON string
		host     string
	)

	cmd := &cobra.Command{
		Use:   "test <executable>",
		Short: "Test an invocation against the loaded policies",
		Long: `Evaluate a hypothetical module invocation against the loaded
policies without running anything.`,
		Example: `  # Would this invocation be allowed?
  convoy policy test /sbin/mkfs --args '{"fstype":"ext4"}'

  # Host-scoped evaluation
  convoy policy test ./modules/pkg --args '{"state":"absent"}' --host web1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			engine, err := a.policyEngine(cmd.Context())
			if err != nil {
				return err
			}
			if engine == nil {
				return fmt.Errorf("policy enforcement is disabled in configuration")
			}

			moduleArgs, err := parseModuleArgs(argsJSON, "")
			if err != nil {
				return err
			}

			result, err := engine.EvaluateInvocation(cmd.Context(), &policy.Input{
				Executable: args[0],
				Args:       moduleArgs,
				Host:       host,
				Context: &policy.Context{
					User:      os.Getenv("USER"),
					Timestamp: time.Now(),
					DryRun:    true,
				},
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(result, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				for _, v := range result.Violations {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", v.Severity, v.Policy, v.Message)
				}
				if result.Allowed {
					fmt.Fprintln(cmd.OutOrStdout(), "Allowed")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Denied")
				}
			}

			if !result.Allowed {
				return fmt.Errorf("invocation would be denied")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", "module arguments as a JSON object")
	cmd.Flags().StringVar(&host, "host", "", "target host for host-scoped policies")

	return cmd
}
