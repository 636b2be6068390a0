package modexec

import (
	"encoding/base64"
	"testing"
)

func TestEncodeDecodeArgs_RoundTrip(t *testing.T) {
	args := map[string]interface{}{
		"name":  "x",
		"state": "present",
		"nested": map[string]interface{}{
			"port": float64(8080),
		},
	}

	encoded, err := EncodeArgs(args)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	decoded, err := DecodeArgs(encoded)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if decoded["name"] != "x" || decoded["state"] != "present" {
		t.Errorf("Expected round-trip of scalar args, got %v", decoded)
	}
	nested, ok := decoded["nested"].(map[string]interface{})
	if !ok || nested["port"] != float64(8080) {
		t.Errorf("Expected round-trip of nested mapping, got %v", decoded["nested"])
	}
}

func TestEncodeArgs_NilMapping(t *testing.T) {
	encoded, err := EncodeArgs(nil)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("Expected valid base64, got: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("Expected empty JSON object, got %q", raw)
	}
}

func TestDecodeArgs_RawJSONFallback(t *testing.T) {
	decoded, err := DecodeArgs(`{"name": "x", "count": 2}`)
	if err != nil {
		t.Fatalf("Expected no error for raw JSON payload, got: %v", err)
	}
	if decoded["name"] != "x" {
		t.Errorf("Expected name=x, got %v", decoded["name"])
	}
	if decoded["count"] != float64(2) {
		t.Errorf("Expected count=2, got %v", decoded["count"])
	}
}

func TestDecodeArgs_EmptyPayload(t *testing.T) {
	for _, payload := range []string{"", "   ", "\n"} {
		decoded, err := DecodeArgs(payload)
		if err != nil {
			t.Errorf("Expected no error for empty payload %q, got: %v", payload, err)
		}
		if decoded == nil || len(decoded) != 0 {
			t.Errorf("Expected empty mapping for payload %q, got %v", payload, decoded)
		}
	}
}

func TestDecodeArgs_GarbageDegradesToEmpty(t *testing.T) {
	decoded, err := DecodeArgs("!!! not base64, not json !!!")
	if decoded == nil || len(decoded) != 0 {
		t.Errorf("Expected empty mapping, got %v", decoded)
	}
	if err == nil {
		t.Fatal("Expected diagnostic decode error, got nil")
	}
	if !IsDecode(err) {
		t.Errorf("Expected decode error kind, got: %v", err)
	}
}

func TestDecodeArgs_Base64OfNonJSON(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("plain text"))

	decoded, err := DecodeArgs(payload)
	if decoded == nil || len(decoded) != 0 {
		t.Errorf("Expected empty mapping, got %v", decoded)
	}
	if !IsDecode(err) {
		t.Errorf("Expected decode error kind, got: %v", err)
	}
}

func TestDecodeArgs_JSONNull(t *testing.T) {
	decoded, err := DecodeArgs(base64.StdEncoding.EncodeToString([]byte("null")))
	if err != nil {
		t.Fatalf("Expected no error for JSON null, got: %v", err)
	}
	if decoded == nil || len(decoded) != 0 {
		t.Errorf("Expected empty mapping for JSON null, got %v", decoded)
	}
}
