package modexec

import (
	"bytes"
	"encoding/json"
	"time"
)

// Result is the interpreted outcome of one module invocation. It is built
// once when the invocation completes and never mutated afterwards.
type Result struct {
	// Changed reports whether the module claims to have modified the target.
	Changed bool `json:"changed"`

	// Failed reports failure: true when the module set failed:true in its
	// output or when the process exited non-zero. Either condition alone is
	// sufficient.
	Failed bool `json:"failed"`

	// Skipped reports whether the module declined to act.
	Skipped bool `json:"skipped,omitempty"`

	// Msg is the module's human-readable message, if any.
	Msg string `json:"msg,omitempty"`

	// Data holds the module-specific keys from the result object, with the
	// reserved keys (changed, failed, skipped, msg) extracted.
	Data map[string]interface{} `json:"data,omitempty"`

	// Raw is the parsed result object verbatim, reserved keys included.
	// Consumers that treat the output as a document (dynamic inventory
	// sources) read this instead of Data.
	Raw map[string]interface{} `json:"-"`

	// Stderr is the full standard error output of the process.
	Stderr string `json:"stderr,omitempty"`

	// ExitCode is the process exit code, propagated verbatim.
	ExitCode int `json:"exit_code"`

	// Duration is the wall-clock time the invocation took.
	Duration time.Duration `json:"duration"`
}

// parseOutput extracts the canonical JSON result object from a module's
// standard output. Modules emit exactly one JSON object line; lines of
// non-JSON noise before it are skipped so the first parseable object wins.
func parseOutput(stdout []byte) (map[string]interface{}, error) {
	for _, line := range bytes.Split(stdout, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(line, &doc); err != nil {
			continue
		}
		return doc, nil
	}
	return nil, NewProtocolError("standard output contains no JSON result object", nil).
		WithRawOutput(string(stdout))
}

// newResult builds a Result from a parsed output document plus the process
// facts the channel observed.
func newResult(doc map[string]interface{}, exitCode int, stderr string, duration time.Duration) *Result {
	r := &Result{
		ExitCode: exitCode,
		Stderr:   stderr,
		Duration: duration,
		Data:     make(map[string]interface{}),
		Raw:      doc,
	}

	for k, v := range doc {
		switch k {
		case "changed":
			r.Changed, _ = v.(bool)
		case "failed":
			r.Failed, _ = v.(bool)
		case "skipped":
			r.Skipped, _ = v.(bool)
		case "msg":
			r.Msg, _ = v.(string)
		default:
			r.Data[k] = v
		}
	}

	if exitCode != 0 {
		r.Failed = true
	}

	return r
}
