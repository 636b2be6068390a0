package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/convoyops/convoy/pkg/inventory"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "convoy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config fixture: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Modules.ArgsVar != "ANSIBLE_MODULE_ARGS" {
		t.Errorf("Expected default args var, got %s", cfg.Modules.ArgsVar)
	}
	if cfg.Modules.MaxParallel != 10 {
		t.Errorf("Expected default parallelism 10, got %d", cfg.Modules.MaxParallel)
	}
	if cfg.Inventory.RootGroup != "all" {
		t.Errorf("Expected default root group, got %s", cfg.Inventory.RootGroup)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
modules:
  args_var: CONVOY_MODULE_ARGS
  default_timeout: 90s
  max_parallel: 4

inventory:
  root_group: fleet
  ungrouped_group: loose
  continue_on_source_error: true
  sources:
    - name: primary
      type: static
      path: hosts.yaml
    - type: exec
      path: cloud.sh
      timeout: 45s

cache:
  enabled: true
  ttl: 1h

telemetry:
  log_level: debug
  log_format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Modules.ArgsVar != "CONVOY_MODULE_ARGS" {
		t.Errorf("Expected overridden args var, got %s", cfg.Modules.ArgsVar)
	}
	if cfg.Modules.DefaultTimeout.Std() != 90*time.Second {
		t.Errorf("Expected 90s timeout, got %v", cfg.Modules.DefaultTimeout.Std())
	}
	if cfg.Modules.MaxParallel != 4 {
		t.Errorf("Expected parallelism 4, got %d", cfg.Modules.MaxParallel)
	}
	if cfg.Inventory.RootGroup != "fleet" {
		t.Errorf("Expected root group fleet, got %s", cfg.Inventory.RootGroup)
	}
	if !cfg.Inventory.ContinueOnSourceError {
		t.Error("Expected continue_on_source_error to be set")
	}
	if cfg.Cache.TTL.Std() != time.Hour {
		t.Errorf("Expected 1h cache TTL, got %v", cfg.Cache.TTL.Std())
	}
	if cfg.Telemetry.LogLevel != "debug" {
		t.Errorf("Expected debug log level, got %s", cfg.Telemetry.LogLevel)
	}

	sources := cfg.InventorySources()
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != "primary" || sources[0].Type != inventory.SourceTypeStatic {
		t.Errorf("Expected named static source, got %+v", sources[0])
	}
	if sources[1].Timeout != 45*time.Second {
		t.Errorf("Expected 45s source timeout, got %v", sources[1].Timeout)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "modules:\n  default_timeout: nonsense\n")

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid duration")
	}
}

func TestLoad_InvalidSourceType(t *testing.T) {
	path := writeConfig(t, `
inventory:
  sources:
    - type: carrier-pigeon
      path: x
`)

	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for unknown source type")
	}
}

func TestLoad_MissingSourcePath(t *testing.T) {
	path := writeConfig(t, `
inventory:
  sources:
    - type: static
`)

	if _, err := Load(path); err == nil {
		t.Error("Expected validation error for missing source path")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONVOY_ARGS_VAR", "ALT_ARGS")
	t.Setenv("CONVOY_MAX_PARALLEL", "3")
	t.Setenv("CONVOY_LOG_LEVEL", "trace")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.Modules.ArgsVar != "ALT_ARGS" {
		t.Errorf("Expected env override for args var, got %s", cfg.Modules.ArgsVar)
	}
	if cfg.Modules.MaxParallel != 3 {
		t.Errorf("Expected env override for parallelism, got %d", cfg.Modules.MaxParallel)
	}
	if cfg.Telemetry.LogLevel != "trace" {
		t.Errorf("Expected env override for log level, got %s", cfg.Telemetry.LogLevel)
	}
}

func TestValidate_GroupNameCollision(t *testing.T) {
	cfg := Default()
	cfg.Inventory.UngroupedGroup = cfg.Inventory.RootGroup

	if err := Validate(cfg); err == nil {
		t.Error("Expected validation error for colliding group names")
	}
}

func TestValidate_BadLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.LogLevel = "loud"

	if err := Validate(cfg); err == nil {
		t.Error("Expected validation error for unknown log level")
	}
}

func TestConfig_ModexecConfig(t *testing.T) {
	cfg := Default()
	mc := cfg.ModexecConfig()

	if mc.ArgsVar != cfg.Modules.ArgsVar {
		t.Errorf("Expected args var carried over, got %s", mc.ArgsVar)
	}
	if mc.KillGrace != cfg.Modules.KillGrace.Std() {
		t.Errorf("Expected kill grace carried over, got %v", mc.KillGrace)
	}
}
