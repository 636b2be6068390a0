package policy

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func testLoader() *Loader {
	return NewLoader(zerolog.Nop())
}

func TestLoader_RegoFile(t *testing.T) {
	loader := testLoader()

	policyFile := filepath.Join(t.TempDir(), "deny-tmp-modules.rego")
	regoContent := `package convoy.policies.test

# Denies modules invoked from scratch directories

deny contains msg if {
	startswith(input.executable, "/tmp/")
	msg := "module invoked from /tmp"
}`
	if err := os.WriteFile(policyFile, []byte(regoContent), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	policy, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if policy.Name != "deny-tmp-modules" {
		t.Errorf("Expected name from file, got %s", policy.Name)
	}
	if policy.Rego != regoContent {
		t.Error("Expected Rego source carried verbatim")
	}
	if policy.Description == "" {
		t.Error("Expected description extracted from leading comment")
	}
	if policy.Severity != SeverityWarning {
		t.Errorf("Expected default severity warning, got %s", policy.Severity)
	}
	if !policy.Enabled {
		t.Error("Expected loaded policy to be enabled")
	}
}

func TestLoader_JSONFile(t *testing.T) {
	loader := testLoader()

	policy := Policy{
		Name:     "json-policy",
		Rego:     "package convoy.policies.json\n\ndeny contains x if { false }",
		Severity: SeverityError,
		Enabled:  true,
	}
	data, err := json.Marshal(policy)
	if err != nil {
		t.Fatalf("Failed to marshal fixture: %v", err)
	}

	policyFile := filepath.Join(t.TempDir(), "policy.json")
	if err := os.WriteFile(policyFile, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.loadFromFile(policyFile)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}

	if loaded.Name != "json-policy" {
		t.Errorf("Expected JSON name preserved, got %s", loaded.Name)
	}
	if loaded.Severity != SeverityError {
		t.Errorf("Expected JSON severity preserved, got %s", loaded.Severity)
	}
	if loaded.CreatedAt.IsZero() {
		t.Error("Expected created timestamp defaulted")
	}
}

func TestLoader_Directory(t *testing.T) {
	loader := testLoader()

	dir := t.TempDir()
	files := map[string]string{
		"a.rego":      "package convoy.policies.a\n\ndeny contains x if { false }",
		"b.rego":      "package convoy.policies.b\n\ndeny contains x if { false }",
		"ignored.txt": "not a policy",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(policies) != 2 {
		t.Errorf("Expected 2 policies (non-policy files skipped), got %d", len(policies))
	}
}

func TestLoader_MissingPath(t *testing.T) {
	loader := testLoader()

	_, err := loader.LoadFromPaths(context.Background(), []string{filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Error("Expected error for missing path")
	}
}

func TestLoader_Bundle(t *testing.T) {
	loader := testLoader()

	bundle := Bundle{
		Name:    "safety",
		Version: "1.0.0",
		Policies: []Policy{
			{Name: "one", Rego: "package convoy.policies.one", Enabled: true},
			{Name: "two", Rego: "package convoy.policies.two", Enabled: true},
		},
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("Failed to marshal fixture: %v", err)
	}

	bundlePath := filepath.Join(t.TempDir(), "bundle.json")
	if err := os.WriteFile(bundlePath, data, 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	loaded, err := loader.LoadBundle(context.Background(), bundlePath)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if loaded.Name != "safety" || len(loaded.Policies) != 2 {
		t.Errorf("Expected bundle parsed, got %+v", loaded)
	}
}

func TestExtractDescription(t *testing.T) {
	desc := extractDescription("# First line\n# second line\npackage x\n")
	if desc != "First line second line" {
		t.Errorf("Expected joined comment lines, got %q", desc)
	}

	if extractDescription("package x\n# trailing comment") != "" {
		t.Error("Expected description only from leading comments")
	}
}
