package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/convoyops/convoy/pkg/modexec"
	"github.com/convoyops/convoy/pkg/policy"
	"github.com/convoyops/convoy/pkg/stores"
	"github.com/convoyops/convoy/pkg/telemetry"
)

func newInvokeCommand() *cobra.Command {
	var (
		argsJSON string
		argsFile string
		hosts    []string
		pattern  string
		timeout  time.Duration
		checkRun bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "invoke <executable>",
		Short: "Invoke a configuration module",
		Long: `Invoke a configuration module executable.

Arguments are JSON-serialized, base64-encoded, and delivered to the
module through a single environment variable. The module reports its
result as one JSON object on stdout; a non-zero exit code or a
"failed": true field in the result marks the invocation as failed.

When targets are given the module runs once per host with bounded
parallelism, and each invocation is evaluated against the loaded
policies and served from the result cache when possible.`,
		Example: `  # Invoke a module locally
  convoy invoke ./modules/ping --args '{"data":"pong"}'

  # Invoke against specific hosts
  convoy invoke ./modules/pkg --args '{"name":"nginx"}' --host web1 --host web2

  # Invoke against all hosts matching a pattern
  convoy invoke ./modules/setup --pattern 'web*'

  # Bypass the result cache
  convoy invoke ./modules/setup --host web1 --no-cache`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			executable := args[0]
			ctx := cmd.Context()

			moduleArgs, err := parseModuleArgs(argsJSON, argsFile)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if timeout == 0 {
				timeout = a.cfg.Modules.DefaultTimeout.Std()
			}

			targets := hosts
			if pattern != "" {
				inv, err := a.resolveInventory(ctx)
				if err != nil {
					return err
				}
				matched := inv.Match(pattern)
				if len(matched) == 0 {
					return fmt.Errorf("no hosts matched pattern %q", pattern)
				}
				targets = append(targets, matched...)
			}

			// No targets requested at all: a single local invocation
			if len(targets) == 0 {
				targets = []string{""}
			}

			engine, err := a.policyEngine(ctx)
			if err != nil {
				return err
			}

			var hostVars map[string]map[string]interface{}
			if engine != nil && targets[0] != "" {
				hostVars = resolveHostVars(cmd, a, targets)
			}

			var store *stores.SQLiteStore
			if !noCache {
				store, err = a.openStore(ctx)
				if err != nil {
					return err
				}
			}

			// Policy gate before anything runs
			if engine != nil {
				blocked, err := gateInvocations(ctx, a, engine, executable, moduleArgs, targets, hostVars, checkRun)
				if err != nil {
					return err
				}
				if blocked {
					return fmt.Errorf("invocation blocked by policy")
				}
			}

			outcomes := runInvocations(cmd, a, store, executable, moduleArgs, targets, timeout)

			failed := 0
			for _, out := range outcomes {
				printOutcome(cmd, out)
				if out.Err != nil || (out.Result != nil && out.Result.Failed) {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d invocations failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "", "module arguments as a JSON object")
	cmd.Flags().StringVar(&argsFile, "args-file", "", "read module arguments from a JSON file")
	cmd.Flags().StringSliceVarP(&hosts, "host", "H", nil, "target hosts")
	cmd.Flags().StringVar(&pattern, "pattern", "", "target hosts matching an inventory pattern")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-invocation timeout (default from config)")
	cmd.Flags().BoolVar(&checkRun, "check", false, "evaluate policies as a dry run")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the result cache")

	return cmd
}

// parseModuleArgs reads the argument mapping from the --args flag or an
// argument file. Both empty means an empty mapping.
func parseModuleArgs(argsJSON, argsFile string) (map[string]interface{}, error) {
	raw := []byte(argsJSON)
	if argsFile != "" {
		if argsJSON != "" {
			return nil, fmt.Errorf("--args and --args-file are mutually exclusive")
		}
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read args file: %w", err)
		}
		raw = data
	}

	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}

	var moduleArgs map[string]interface{}
	if err := json.Unmarshal(raw, &moduleArgs); err != nil {
		return nil, fmt.Errorf("invalid module arguments: %w", err)
	}
	return moduleArgs, nil
}

// resolveHostVars fetches merged variables for each target for policy
// evaluation. Resolution failures degrade to empty vars.
func resolveHostVars(cmd *cobra.Command, a *app, targets []string) map[string]map[string]interface{} {
	hostVars := make(map[string]map[string]interface{}, len(targets))

	inv, err := a.resolveInventory(cmd.Context())
	if err != nil {
		a.logger.Warn().Err(err).Msg("Inventory resolution failed, evaluating policies without host vars")
		return hostVars
	}

	for _, host := range targets {
		vars, err := inv.HostVars(host)
		if err != nil {
			a.logger.Warn().Str("host", host).Err(err).Msg("Host vars lookup failed")
			continue
		}
		hostVars[host] = vars
	}
	return hostVars
}

// gateInvocations evaluates every planned invocation against the policy
// engine. Returns true when at least one invocation is denied and the
// engine is in enforcing mode.
func gateInvocations(ctx context.Context, a *app, engine *policy.Engine, executable string, moduleArgs map[string]interface{}, targets []string, hostVars map[string]map[string]interface{}, dryRun bool) (bool, error) {
	enforcing := a.cfg.Policy.Mode != "advisory"
	denied := false

	for _, host := range targets {
		input := &policy.Input{
			Executable: executable,
			Args:       moduleArgs,
			Host:       host,
			HostVars:   hostVars[host],
			Context: &policy.Context{
				User:      os.Getenv("USER"),
				Timestamp: time.Now(),
				DryRun:    dryRun,
			},
		}
		// Local runs carry no host identity or host vars; mark them so
		// Rego rules can scope themselves to fleet targets.
		if host == "" {
			input.Context.Metadata = map[string]interface{}{"scope": "local"}
		}

		result, err := engine.EvaluateInvocation(ctx, input)
		if err != nil {
			return false, fmt.Errorf("policy evaluation failed: %w", err)
		}

		for _, v := range result.Violations {
			a.logger.Warn().
				Str("policy", v.Policy).
				Str("host", v.Host).
				Str("severity", string(v.Severity)).
				Msg(v.Message)
		}
		if result.Allowed {
			a.tel.Metrics.RecordPolicyDecision("allow")
		} else {
			a.tel.Metrics.RecordPolicyDecision("deny")
			if len(result.Violations) > 0 {
				_ = a.tel.Events.PublishPolicyDenied(executable, host, result.Violations[0].Policy)
			}
			denied = true
		}
	}

	return denied && enforcing, nil
}

// runInvocations executes the module once per target through the worker
// pool, consulting and updating the result cache around each run.
func runInvocations(cmd *cobra.Command, a *app, store *stores.SQLiteStore, executable string, moduleArgs map[string]interface{}, targets []string, timeout time.Duration) []modexec.Outcome {
	ctx := cmd.Context()
	ttl := int(a.cfg.Cache.TTL.Std().Seconds())

	var outcomes []modexec.Outcome
	var requests []modexec.Request
	var requestHosts []string

	for _, host := range targets {
		if store != nil {
			key := stores.InvocationKey(executable, moduleArgs, host)
			if cached, err := store.GetInvocation(ctx, key); err == nil {
				var result modexec.Result
				if err := json.Unmarshal([]byte(cached.Result), &result); err == nil {
					a.logger.Debug().Str("host", host).Str("key", key).Msg("Cache hit")
					a.tel.Metrics.RecordCacheOp("invocation", "hit")
					outcomes = append(outcomes, modexec.Outcome{
						ID:      host,
						Request: modexec.Request{Executable: executable, Args: moduleArgs, Timeout: timeout},
						Result:  &result,
					})
					continue
				}
			}
			a.tel.Metrics.RecordCacheOp("invocation", "miss")
		}

		requests = append(requests, modexec.Request{
			Executable: executable,
			Args:       moduleArgs,
			Timeout:    timeout,
		})
		requestHosts = append(requestHosts, host)
	}

	if len(requests) > 0 {
		pool := modexec.NewPool(a.channel, a.cfg.Modules.MaxParallel, a.logger)
		fresh := pool.InvokeAll(ctx, requests)

		for i, out := range fresh {
			host := requestHosts[i]
			out.ID = host
			recordOutcome(a, executable, host, out)

			if store != nil && out.Err == nil && out.Result != nil && !out.Result.Failed {
				blob, err := json.Marshal(out.Result)
				if err == nil {
					key := stores.InvocationKey(executable, moduleArgs, host)
					if err := store.PutInvocation(ctx, &stores.CachedInvocation{
						Key:        key,
						Executable: executable,
						Host:       host,
						Result:     string(blob),
						ExitCode:   out.Result.ExitCode,
						TTL:        ttl,
					}); err != nil {
						a.logger.Warn().Err(err).Msg("Failed to cache invocation result")
					}
				}
			}

			outcomes = append(outcomes, out)
		}
	}

	return outcomes
}

// recordOutcome feeds one fresh invocation into metrics and the event bus.
func recordOutcome(a *app, executable, host string, out modexec.Outcome) {
	var duration time.Duration
	if out.Result != nil {
		duration = out.Result.Duration
	}

	switch {
	case modexec.IsTimeout(out.Err):
		a.tel.Metrics.RecordInvocation(telemetry.StatusTimeout, duration)
		_ = a.tel.Events.PublishInvocationFailed(executable, host, "timeout")
	case modexec.IsProtocol(out.Err):
		a.tel.Metrics.RecordInvocation(telemetry.StatusProtocol, duration)
		_ = a.tel.Events.PublishInvocationFailed(executable, host, "protocol error")
	case modexec.IsLaunch(out.Err):
		a.tel.Metrics.RecordInvocation(telemetry.StatusLaunch, duration)
		_ = a.tel.Events.PublishInvocationFailed(executable, host, "launch error")
	case out.Err != nil, out.Result != nil && out.Result.Failed:
		a.tel.Metrics.RecordInvocation(telemetry.StatusFailed, duration)
		msg := "failed"
		if out.Result != nil && out.Result.Msg != "" {
			msg = out.Result.Msg
		}
		_ = a.tel.Events.PublishInvocationFailed(executable, host, msg)
	default:
		a.tel.Metrics.RecordInvocation(telemetry.StatusOK, duration)
		changed := out.Result != nil && out.Result.Changed
		_ = a.tel.Events.PublishInvocationCompleted(executable, host, changed, duration)
	}
}

// printOutcome writes one invocation outcome to stdout.
func printOutcome(cmd *cobra.Command, out modexec.Outcome) {
	host := out.ID
	if host == "" {
		host = "local"
	}

	if jsonOutput {
		payload := map[string]interface{}{"host": host}
		if out.Err != nil {
			payload["error"] = out.Err.Error()
		}
		if out.Result != nil {
			payload["result"] = out.Result
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return
	}

	switch {
	case out.Err != nil:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ERROR %v\n", host, out.Err)
	case out.Result.Failed:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: FAILED %s (exit %d)\n", host, out.Result.Msg, out.Result.ExitCode)
	case out.Result.Skipped:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: SKIPPED %s\n", host, out.Result.Msg)
	case out.Result.Changed:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: CHANGED %s\n", host, out.Result.Msg)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s: OK %s\n", host, out.Result.Msg)
	}
}
