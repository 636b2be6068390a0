package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// invokeFixture lays down a minimal config with one static inventory
// source and a module script that records each run by touching a
// marker file.
func invokeFixture(t *testing.T) (cfgPath, script, marker string) {
	t.Helper()
	dir := t.TempDir()

	invPath := filepath.Join(dir, "inv.json")
	if err := os.WriteFile(invPath, []byte(`{"web":{"hosts":["web1"]}}`), 0o644); err != nil {
		t.Fatalf("Failed to write inventory fixture: %v", err)
	}

	marker = filepath.Join(dir, "ran")
	script = filepath.Join(dir, "module.sh")
	body := fmt.Sprintf("#!/bin/sh\ntouch %s\necho '{\"changed\":true}'\n", marker)
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("Failed to write module fixture: %v", err)
	}

	cfgPath = filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("inventory:\n  sources:\n    - name: test\n      type: static\n      path: %s\n", invPath)
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("Failed to write config fixture: %v", err)
	}

	return cfgPath, script, marker
}

func runConvoy(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand("test", "none", "none")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInvoke_PatternNoMatch(t *testing.T) {
	cfgPath, script, marker := invokeFixture(t)

	_, err := runConvoy(t, "invoke", script, "--pattern", "zzz*", "--config", cfgPath)
	if err == nil {
		t.Fatal("Expected error for pattern matching no hosts")
	}
	if !strings.Contains(err.Error(), "no hosts matched") {
		t.Errorf("Expected no-match error, got: %v", err)
	}

	if _, statErr := os.Stat(marker); !os.IsNotExist(statErr) {
		t.Error("Expected module not to run when pattern matches no hosts")
	}
}

func TestInvoke_PatternMatch(t *testing.T) {
	cfgPath, script, marker := invokeFixture(t)

	out, err := runConvoy(t, "invoke", script, "--pattern", "web*", "--config", cfgPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(out, "web1") {
		t.Errorf("Expected matched host in output, got: %s", out)
	}
	if _, statErr := os.Stat(marker); statErr != nil {
		t.Errorf("Expected module to run for matched host: %v", statErr)
	}
}

func TestInvoke_NoTargetsRunsLocally(t *testing.T) {
	cfgPath, script, marker := invokeFixture(t)

	out, err := runConvoy(t, "invoke", script, "--config", cfgPath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(out, "local") {
		t.Errorf("Expected local run in output, got: %s", out)
	}
	if _, statErr := os.Stat(marker); statErr != nil {
		t.Errorf("Expected module to run locally: %v", statErr)
	}
}
