// Package config loads and validates the Convoy engine configuration.
//
// # Overview
//
// Configuration is an explicit YAML file, not ambient state: the module
// arguments environment variable, the inventory root group name, timeouts,
// and parallelism are all declared here and handed to the subsystems that
// need them.
//
// # Components
//
// Config: The top-level configuration with sections for module invocation,
// inventory resolution, caching, policy, and telemetry.
//
// Load: Reads a YAML file, overlays CONVOY_* environment overrides, and
// validates the result. An empty path yields the defaults.
//
// # Usage Example
//
//	cfg, err := config.Load("convoy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	channel := modexec.NewChannel(cfg.ModexecConfig(), logger)
//	resolver := inventory.NewResolver(loader, cfg.InventoryResolverConfig(), logger)
//
// # Configuration Structure
//
//	modules:
//	  args_var: ANSIBLE_MODULE_ARGS
//	  default_timeout: 5m
//	  max_parallel: 10
//
//	inventory:
//	  root_group: all
//	  sources:
//	    - type: static
//	      path: inventory/hosts.yaml
//	    - type: exec
//	      path: inventory/cloud.sh
//	      timeout: 30s
//
//	cache:
//	  enabled: true
//	  path: convoy-cache.db
//	  ttl: 10m
//
// # Validation
//
// Struct constraints are enforced with go-playground/validator tags; cross-field
// rules (distinct root and ungrouped group names, non-empty arguments variable)
// are checked explicitly.
package config
