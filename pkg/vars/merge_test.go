package vars

import (
	"reflect"
	"testing"
)

func TestMerge_DisjointKeys(t *testing.T) {
	base := map[string]interface{}{"x": 0, "y": 2}
	overlay := map[string]interface{}{"z": "three"}

	out := Merge(base, overlay)

	want := map[string]interface{}{"x": 0, "y": 2, "z": "three"}
	if !reflect.DeepEqual(out, want) {
		t.Errorf("Expected %v, got %v", want, out)
	}
}

func TestMerge_ScalarOverrides(t *testing.T) {
	base := map[string]interface{}{"x": 0, "y": 2}
	overlay := map[string]interface{}{"x": 1}

	out := Merge(base, overlay)

	if out["x"] != 1 {
		t.Errorf("Expected overlay scalar to win, got %v", out["x"])
	}
	if out["y"] != 2 {
		t.Errorf("Expected base key to survive, got %v", out["y"])
	}
}

func TestMerge_SequenceReplacesWholesale(t *testing.T) {
	base := map[string]interface{}{
		"ports": []interface{}{80, 443, 8080},
	}
	overlay := map[string]interface{}{
		"ports": []interface{}{22},
	}

	out := Merge(base, overlay)

	ports, ok := out["ports"].([]interface{})
	if !ok {
		t.Fatalf("Expected sequence, got %T", out["ports"])
	}
	if len(ports) != 1 || ports[0] != 22 {
		t.Errorf("Expected sequence replacement, got %v", ports)
	}
}

func TestMerge_NestedMappingsDeepMerge(t *testing.T) {
	base := map[string]interface{}{
		"db": map[string]interface{}{
			"host": "localhost",
			"port": 5432,
		},
	}
	overlay := map[string]interface{}{
		"db": map[string]interface{}{
			"port": 5433,
		},
	}

	out := Merge(base, overlay)

	db, ok := out["db"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected mapping, got %T", out["db"])
	}
	if db["host"] != "localhost" {
		t.Errorf("Expected sibling key preserved, got %v", db["host"])
	}
	if db["port"] != 5433 {
		t.Errorf("Expected nested key overridden, got %v", db["port"])
	}
}

func TestMerge_MappingReplacesScalar(t *testing.T) {
	base := map[string]interface{}{"cfg": "inline"}
	overlay := map[string]interface{}{
		"cfg": map[string]interface{}{"mode": "full"},
	}

	out := Merge(base, overlay)

	cfg, ok := out["cfg"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected overlay mapping to replace scalar, got %T", out["cfg"])
	}
	if cfg["mode"] != "full" {
		t.Errorf("Expected mode=full, got %v", cfg["mode"])
	}
}

func TestMerge_ScalarReplacesMapping(t *testing.T) {
	base := map[string]interface{}{
		"cfg": map[string]interface{}{"mode": "full"},
	}
	overlay := map[string]interface{}{"cfg": "disabled"}

	out := Merge(base, overlay)

	if out["cfg"] != "disabled" {
		t.Errorf("Expected overlay scalar to replace mapping, got %v", out["cfg"])
	}
}

func TestMerge_NilInputs(t *testing.T) {
	out := Merge(nil, nil)
	if out == nil {
		t.Fatal("Expected non-nil empty mapping")
	}
	if len(out) != 0 {
		t.Errorf("Expected empty mapping, got %v", out)
	}

	out = Merge(nil, map[string]interface{}{"a": 1})
	if out["a"] != 1 {
		t.Errorf("Expected overlay applied over nil base, got %v", out)
	}

	out = Merge(map[string]interface{}{"a": 1}, nil)
	if out["a"] != 1 {
		t.Errorf("Expected base preserved under nil overlay, got %v", out)
	}
}

func TestMerge_InputsNotMutated(t *testing.T) {
	base := map[string]interface{}{
		"db": map[string]interface{}{"host": "localhost"},
	}
	overlay := map[string]interface{}{
		"db": map[string]interface{}{"port": 5432},
	}

	_ = Merge(base, overlay)

	baseDB := base["db"].(map[string]interface{})
	if _, leaked := baseDB["port"]; leaked {
		t.Error("Merge mutated base nested mapping")
	}
	overlayDB := overlay["db"].(map[string]interface{})
	if _, leaked := overlayDB["host"]; leaked {
		t.Error("Merge mutated overlay nested mapping")
	}
}

func TestMerge_Associativity(t *testing.T) {
	a := map[string]interface{}{
		"x": 1,
		"nested": map[string]interface{}{"a": 1, "b": 1},
	}
	b := map[string]interface{}{
		"x": 2,
		"nested": map[string]interface{}{"b": 2, "c": 2},
	}
	c := map[string]interface{}{
		"nested": map[string]interface{}{"c": 3},
		"y":      3,
	}

	left := Merge(Merge(a, b), c)
	folded := MergeAll(a, b, c)

	if !reflect.DeepEqual(left, folded) {
		t.Errorf("Expected associative fold, got %v vs %v", left, folded)
	}

	want := map[string]interface{}{
		"x": 2,
		"y": 3,
		"nested": map[string]interface{}{"a": 1, "b": 2, "c": 3},
	}
	if !reflect.DeepEqual(left, want) {
		t.Errorf("Expected %v, got %v", want, left)
	}
}

func TestMergeAll_Empty(t *testing.T) {
	out := MergeAll()
	if out == nil || len(out) != 0 {
		t.Errorf("Expected empty mapping, got %v", out)
	}
}

func TestCopy_DeepIndependence(t *testing.T) {
	src := map[string]interface{}{
		"list": []interface{}{1, map[string]interface{}{"k": "v"}},
		"map":  map[string]interface{}{"inner": "x"},
	}

	dup := Copy(src)

	dup["map"].(map[string]interface{})["inner"] = "changed"
	dup["list"].([]interface{})[0] = 99

	if src["map"].(map[string]interface{})["inner"] != "x" {
		t.Error("Copy shares nested mapping with source")
	}
	if src["list"].([]interface{})[0] != 1 {
		t.Error("Copy shares sequence with source")
	}
}
