package inventory

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// starlarkEvaluator executes constructed inventory programs. A program
// assigns a module-global `groups` dict in the document wire shape and may
// assign a `hostvars` dict mapping host name to a variable mapping.
type starlarkEvaluator struct{}

func newStarlarkEvaluator() *starlarkEvaluator {
	return &starlarkEvaluator{}
}

// Evaluate runs one program with a timeout and returns the document wire
// mapping it constructed.
func (se *starlarkEvaluator) Evaluate(ctx context.Context, filename, script string, timeout time.Duration) (map[string]interface{}, error) {
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan map[string]interface{}, 1)
	errCh := make(chan error, 1)

	go func() {
		raw, err := se.evaluateSync(filename, script)
		if err != nil {
			errCh <- err
		} else {
			resultCh <- raw
		}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("starlark evaluation timeout after %v", timeout)
	case err := <-errCh:
		return nil, err
	case raw := <-resultCh:
		return raw, nil
	}
}

func (se *starlarkEvaluator) evaluateSync(filename, script string) (map[string]interface{}, error) {
	thread := &starlark.Thread{
		Name: "convoy-inventory",
		Print: func(_ *starlark.Thread, msg string) {
			// Suppress print for security
		},
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
	}

	globals, err := starlark.ExecFile(thread, filename, script, predeclared)
	if err != nil {
		return nil, fmt.Errorf("starlark execution failed: %w", err)
	}

	groupsVal, ok := globals["groups"]
	if !ok {
		return nil, fmt.Errorf("program did not assign a groups dict")
	}
	groups, err := fromStarlarkValue(groupsVal)
	if err != nil {
		return nil, fmt.Errorf("failed to convert groups: %w", err)
	}
	groupsMap, ok := groups.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("groups must be a dict, got %T", groups)
	}

	raw := make(map[string]interface{}, len(groupsMap)+1)
	for name, body := range groupsMap {
		raw[name] = body
	}

	if hostvarsVal, ok := globals["hostvars"]; ok {
		hostvars, err := fromStarlarkValue(hostvarsVal)
		if err != nil {
			return nil, fmt.Errorf("failed to convert hostvars: %w", err)
		}
		raw[metaKey] = map[string]interface{}{"hostvars": hostvars}
	}

	return raw, nil
}

// fromStarlarkValue converts a Starlark value to a JSON-shaped Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
