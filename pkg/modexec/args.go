package modexec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultArgsVar is the environment variable modules read their argument
// payload from unless the channel is configured with a different name.
const DefaultArgsVar = "ANSIBLE_MODULE_ARGS"

// EncodeArgs serializes an argument mapping to JSON and base64-encodes it
// for delivery through the argument environment variable. A nil mapping
// encodes as an empty JSON object.
func EncodeArgs(args map[string]interface{}) (string, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to marshal arguments: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeArgs interprets an argument payload as read from the environment
// variable. Three input forms are accepted:
//
//   - base64-encoded UTF-8 JSON object (the canonical form)
//   - a raw JSON object string (for tools that bypass the encoder)
//   - empty or missing (treated as an empty mapping)
//
// The returned mapping is never nil. A malformed payload degrades to an
// empty mapping; the accompanying decode error is diagnostic only and must
// not be treated as fatal by callers.
func DecodeArgs(payload string) (map[string]interface{}, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return map[string]interface{}{}, nil
	}

	if decoded, err := base64.StdEncoding.DecodeString(payload); err == nil {
		if args, jsonErr := unmarshalObject(decoded); jsonErr == nil {
			return args, nil
		}
	}

	// Raw JSON fallback for payloads that skipped the encoder.
	if args, err := unmarshalObject([]byte(payload)); err == nil {
		return args, nil
	}

	return map[string]interface{}{}, NewDecodeError(
		"argument payload is neither base64-encoded JSON nor raw JSON", nil).
		WithRawOutput(payload)
}

func unmarshalObject(data []byte) (map[string]interface{}, error) {
	var args map[string]interface{}
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}
