package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return engine
}

func TestNewEngine_LoadsBuiltins(t *testing.T) {
	engine := testEngine(t)

	policies := engine.ListPolicies()
	if len(policies) != len(GetBuiltinPolicies()) {
		t.Errorf("Expected %d built-in policies, got %d", len(GetBuiltinPolicies()), len(policies))
	}

	for _, expected := range []string{"restricted-executables", "production-safety", "args-hygiene"} {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestEvaluateInvocation_AllowsBenignModule(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/usr/lib/convoy/modules/ping.sh",
		Args:       map[string]interface{}{"data": "pong"},
		Host:       "web1",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !result.Allowed {
		t.Errorf("Expected benign invocation to be allowed, got violations: %+v", result.Violations)
	}
}

func TestEvaluateInvocation_DeniesRestrictedExecutable(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/sbin/mkfs",
		Host:       "web1",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Allowed {
		t.Error("Expected restricted executable to be denied")
	}
	if len(result.Violations) == 0 {
		t.Fatal("Expected at least one violation")
	}
	if result.Violations[0].Policy != "restricted-executables" {
		t.Errorf("Expected restricted-executables violation, got %s", result.Violations[0].Policy)
	}
	if result.Violations[0].Module != "/sbin/mkfs" {
		t.Errorf("Expected violation to name the module, got %s", result.Violations[0].Module)
	}
}

func TestEvaluateInvocation_DeniesTmpModules(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/tmp/dropper.sh",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Allowed {
		t.Error("Expected module from /tmp to be denied")
	}
}

func TestEvaluateInvocation_ProductionRemovalBlocked(t *testing.T) {
	engine := testEngine(t)

	input := &Input{
		Executable: "/usr/lib/convoy/modules/pkg.sh",
		Args:       map[string]interface{}{"name": "nginx", "state": "absent"},
		Host:       "web1",
		Context:    &Context{Environment: "production"},
	}

	result, err := engine.EvaluateInvocation(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Allowed {
		t.Error("Expected production removal to be denied")
	}

	// The same invocation is fine as a dry run.
	input.Context.DryRun = true
	result, err = engine.EvaluateInvocation(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected dry-run removal to be allowed, got: %+v", result.Violations)
	}
}

func TestEvaluateInvocation_UnmanagedHostBlocked(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/usr/lib/convoy/modules/ping.sh",
		Host:       "db1",
		HostVars:   map[string]interface{}{"unmanaged": true},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Allowed {
		t.Error("Expected unmanaged host to be denied")
	}
}

func TestEvaluateInvocation_SecretArgsWarnOnly(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/usr/lib/convoy/modules/db.sh",
		Args:       map[string]interface{}{"password": "hunter2"},
		Host:       "db1",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !result.Allowed {
		t.Error("Expected warning-severity violation to still allow the invocation")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "args-hygiene" && v.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected args-hygiene warning, got: %+v", result.Violations)
	}
}

func TestEngine_DisablePolicy(t *testing.T) {
	engine := testEngine(t)

	if err := engine.DisablePolicy("restricted-executables"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/sbin/mkfs",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !result.Allowed {
		t.Error("Expected disabled policy not to deny")
	}

	if err := engine.EnablePolicy("restricted-executables"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err = engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/sbin/mkfs",
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if result.Allowed {
		t.Error("Expected re-enabled policy to deny again")
	}
}

func TestEngine_DisableUnknownPolicy(t *testing.T) {
	engine := testEngine(t)

	if err := engine.DisablePolicy("does-not-exist"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestEngine_LoadPoliciesFromFile(t *testing.T) {
	engine := testEngine(t)

	regoPath := filepath.Join(t.TempDir(), "no-raw-shell.rego")
	rego := `package convoy.policies.shell

import rego.v1

deny contains violation if {
	input.args.raw_command
	violation := {
		"message": "Raw shell commands are not allowed",
		"severity": "error",
	}
}`
	if err := os.WriteFile(regoPath, []byte(rego), 0o644); err != nil {
		t.Fatalf("Failed to write policy fixture: %v", err)
	}

	if err := engine.LoadPolicies(context.Background(), []string{regoPath}); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/usr/lib/convoy/modules/shell.sh",
		Args:       map[string]interface{}{"raw_command": "reboot"},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Allowed {
		t.Error("Expected loaded policy to deny raw shell commands")
	}
}

func TestExtractPackageName(t *testing.T) {
	name := extractPackageName("# comment\npackage convoy.policies.custom\n\ndeny contains x if { true }")
	if name != "convoy.policies.custom" {
		t.Errorf("Expected package name extracted, got %s", name)
	}

	if extractPackageName("no package here") != "convoy.policies" {
		t.Errorf("Expected fallback package name, got %s", extractPackageName("no package here"))
	}
}

func TestEngine_EvaluateInvocation_LocalRun(t *testing.T) {
	engine := testEngine(t)

	result, err := engine.EvaluateInvocation(context.Background(), &Input{
		Executable: "/usr/lib/convoy/modules/ping",
		Args:       map[string]interface{}{"data": "pong"},
		Host:       "",
		HostVars:   nil,
		Context: &Context{
			Metadata: map[string]interface{}{"scope": "local"},
		},
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !result.Allowed {
		t.Errorf("Expected local invocation to be allowed, violations: %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Expected no violations for local invocation, got %d", len(result.Violations))
	}
}
