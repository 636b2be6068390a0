package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		restrictedExecutablesPolicy(),
		productionSafetyPolicy(),
		argsHygienePolicy(),
	}
}

// restrictedExecutablesPolicy blocks modules that shell out to destructive
// system binaries.
func restrictedExecutablesPolicy() Policy {
	return Policy{
		Name:        "restricted-executables",
		Description: "Blocks invocation of destructive system binaries as modules",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"modules", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package convoy.policies.executables

import rego.v1

restricted_basenames := ["mkfs", "dd", "shutdown", "reboot", "halt"]

basename(path) := name if {
	parts := split(path, "/")
	name := parts[count(parts) - 1]
}

deny contains violation if {
	input.executable
	some restricted in restricted_basenames
	basename(input.executable) == restricted

	violation := {
		"message": sprintf("Executable '%s' is restricted and cannot be invoked as a module", [input.executable]),
		"severity": "critical",
	}
}

deny contains violation if {
	input.executable
	startswith(input.executable, "/tmp/")

	violation := {
		"message": sprintf("Modules must not be invoked from /tmp: %s", [input.executable]),
		"severity": "error",
	}
}`,
	}
}

// productionSafetyPolicy prevents removal operations in production without a
// dry run first.
func productionSafetyPolicy() Policy {
	return Policy{
		Name:        "production-safety",
		Description: "Prevents state=absent module runs in production outside dry-run mode",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"production", "safety"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package convoy.policies.production

import rego.v1

deny contains violation if {
	input.context
	input.args

	input.context.environment == "production"
	not input.context.dry_run
	input.args.state == "absent"

	violation := {
		"message": sprintf("Module %s would remove state on %s in production; run with dry_run first", [input.executable, input.host]),
		"severity": "critical",
		"host": input.host,
	}
}

# Hosts can opt out of fleet management entirely.
deny contains violation if {
	input.host_vars
	input.host_vars.unmanaged == true

	violation := {
		"message": sprintf("Host %s is marked unmanaged and cannot receive module invocations", [input.host]),
		"severity": "error",
		"host": input.host,
	}
}`,
	}
}

// argsHygienePolicy flags cleartext secrets passed as module arguments.
func argsHygienePolicy() Policy {
	return Policy{
		Name:        "args-hygiene",
		Description: "Warns when cleartext secret-like values are passed as module arguments",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"modules", "secrets"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package convoy.policies.args

import rego.v1

secret_keys := ["password", "secret", "api_key", "token"]

deny contains violation if {
	input.args
	some key in secret_keys
	value := input.args[key]
	is_string(value)
	value != ""

	violation := {
		"message": sprintf("Module argument '%s' carries a cleartext secret; use a vaulted variable instead", [key]),
		"severity": "warning",
	}
}`,
	}
}
