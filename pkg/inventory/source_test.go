package inventory

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/convoyops/convoy/pkg/modexec"
)

func testLoader() *Loader {
	channel := modexec.NewChannel(modexec.Config{}, zerolog.Nop())
	return NewLoader(channel, zerolog.Nop())
}

func TestLoader_StaticJSON(t *testing.T) {
	loader := testLoader()

	doc, err := loader.Load(context.Background(), Source{
		Type: SourceTypeStatic,
		Path: filepath.Join("testdata", "static.json"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(doc.Groups["webservers"].Hosts) != 3 {
		t.Errorf("Expected 3 webserver hosts, got %v", doc.Groups["webservers"].Hosts)
	}
	if doc.Groups["production"].Children[0] != "webservers" {
		t.Errorf("Expected children parsed, got %v", doc.Groups["production"].Children)
	}
	if doc.Meta.HostVars["web1"]["rack"] != "r1" {
		t.Errorf("Expected hostvars parsed, got %v", doc.Meta.HostVars)
	}
}

func TestLoader_StaticYAML(t *testing.T) {
	loader := testLoader()

	doc, err := loader.Load(context.Background(), Source{
		Type: SourceTypeStatic,
		Path: filepath.Join("testdata", "static.yaml"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if doc.Groups["databases"].Vars["engine"] != "postgres" {
		t.Errorf("Expected YAML vars parsed, got %v", doc.Groups["databases"].Vars)
	}
	if doc.Meta.HostVars["db1"]["backup_window"] != "02:00" {
		t.Errorf("Expected YAML hostvars parsed, got %v", doc.Meta.HostVars)
	}
}

func TestLoader_StaticMissingFile(t *testing.T) {
	loader := testLoader()

	_, err := loader.Load(context.Background(), Source{
		Type: SourceTypeStatic,
		Path: filepath.Join("testdata", "does_not_exist.json"),
	})
	if !IsSource(err) {
		t.Errorf("Expected source error kind, got: %v", err)
	}
}

func TestLoader_StaticFailsValidation(t *testing.T) {
	loader := testLoader()

	_, err := loader.Load(context.Background(), Source{
		Type: SourceTypeStatic,
		Path: filepath.Join("testdata", "invalid.json"),
	})
	if !IsSource(err) {
		t.Errorf("Expected source error for non-string host names, got: %v", err)
	}
}

func TestLoader_ExecList(t *testing.T) {
	loader := testLoader()

	doc, err := loader.Load(context.Background(), Source{
		Type: SourceTypeExec,
		Path: filepath.Join("testdata", "inv_list.sh"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(doc.Groups["webservers"].Hosts) != 2 {
		t.Errorf("Expected --list groups parsed, got %v", doc.Groups)
	}
	// _meta is present, so --host output must not have been consulted.
	if doc.Meta.HostVars["web1"]["rack"] != "r1" {
		t.Errorf("Expected _meta.hostvars to win, got %v", doc.Meta.HostVars["web1"])
	}
	if _, used := doc.Meta.HostVars["web1"]["should_not_be_used"]; used {
		t.Error("--host output consulted although _meta.hostvars was present")
	}
}

func TestLoader_ExecHostFallback(t *testing.T) {
	loader := testLoader()

	doc, err := loader.Load(context.Background(), Source{
		Type: SourceTypeExec,
		Path: filepath.Join("testdata", "inv_nohostvars.sh"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	for _, host := range []string{"db1", "db2"} {
		hostVars := doc.Meta.HostVars[host]
		if hostVars == nil {
			t.Fatalf("Expected --host fallback vars for %s", host)
		}
		if hostVars["reported_by"] != "host_form" {
			t.Errorf("Expected vars from --host form, got %v", hostVars)
		}
		if hostVars["inventory_hostname"] != host {
			t.Errorf("Expected per-host invocation for %s, got %v", host, hostVars)
		}
	}
}

func TestLoader_ExecFailure(t *testing.T) {
	loader := testLoader()

	_, err := loader.Load(context.Background(), Source{
		Type: SourceTypeExec,
		Path: filepath.Join("testdata", "inv_fail.sh"),
	})
	if !IsSource(err) {
		t.Errorf("Expected source error for failing dynamic source, got: %v", err)
	}
}

func TestLoader_Starlark(t *testing.T) {
	loader := testLoader()

	doc, err := loader.Load(context.Background(), Source{
		Type: SourceTypeStarlark,
		Path: filepath.Join("testdata", "constructed.star"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	east := doc.Groups["web_east"]
	if east == nil || len(east.Hosts) != 2 {
		t.Fatalf("Expected constructed group web_east, got %+v", doc.Groups)
	}
	if east.Vars["region"] != "east" {
		t.Errorf("Expected region var, got %v", east.Vars)
	}
	if len(doc.Groups["web"].Children) != 2 {
		t.Errorf("Expected parent group children, got %v", doc.Groups["web"])
	}
	if doc.Meta.HostVars["web-east-1"]["primary"] != true {
		t.Errorf("Expected constructed hostvars, got %v", doc.Meta.HostVars)
	}
}

func TestLoader_UnknownSourceType(t *testing.T) {
	loader := testLoader()

	_, err := loader.Load(context.Background(), Source{Type: "carrier-pigeon", Path: "x"})
	if !IsSource(err) {
		t.Errorf("Expected source error for unknown type, got: %v", err)
	}
}

func TestResolver_Resolve_ContinueOnSourceError(t *testing.T) {
	resolver := NewResolver(testLoader(), Config{ContinueOnSourceError: true}, zerolog.Nop())

	inv, err := resolver.Resolve(context.Background(), []Source{
		{Type: SourceTypeExec, Path: filepath.Join("testdata", "inv_fail.sh")},
		{Type: SourceTypeStatic, Path: filepath.Join("testdata", "static.json")},
	})
	if err != nil {
		t.Fatalf("Expected failing source to be skipped, got: %v", err)
	}

	if !containsString(inv.Hosts(), "web1") {
		t.Errorf("Expected surviving source to be resolved, got %v", inv.Hosts())
	}
}

func TestResolver_Resolve_StopsOnSourceError(t *testing.T) {
	resolver := NewResolver(testLoader(), Config{}, zerolog.Nop())

	_, err := resolver.Resolve(context.Background(), []Source{
		{Type: SourceTypeExec, Path: filepath.Join("testdata", "inv_fail.sh")},
		{Type: SourceTypeStatic, Path: filepath.Join("testdata", "static.json")},
	})
	if !IsSource(err) {
		t.Errorf("Expected source error to abort the pass, got: %v", err)
	}
}

func TestStaticAndDynamicAgree(t *testing.T) {
	// The --list wire schema and the static schema are identical: a static
	// file serialized from a dynamic source's output parses to an equal
	// document.
	loader := testLoader()

	fromExec, err := loader.Load(context.Background(), Source{
		Type: SourceTypeExec,
		Path: filepath.Join("testdata", "inv_list.sh"),
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data, err := json.Marshal(fromExec)
	if err != nil {
		t.Fatalf("Failed to serialize document: %v", err)
	}

	reparsed := NewDocument()
	if err := json.Unmarshal(data, reparsed); err != nil {
		t.Fatalf("Failed to re-parse document: %v", err)
	}

	if !fromExec.Equal(reparsed) {
		t.Error("Static and dynamic schema round trip disagree")
	}
}
