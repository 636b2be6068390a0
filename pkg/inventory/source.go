package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/convoyops/convoy/pkg/modexec"
)

// SourceType selects how an inventory source produces its document.
type SourceType string

const (
	// SourceTypeStatic parses a JSON or YAML file directly.
	SourceTypeStatic SourceType = "static"

	// SourceTypeExec invokes an executable implementing the dynamic
	// inventory CLI contract (--list, --host <name>).
	SourceTypeExec SourceType = "exec"

	// SourceTypeStarlark evaluates a Starlark program that constructs the
	// document programmatically.
	SourceTypeStarlark SourceType = "starlark"
)

// Source identifies one inventory source. All source types produce the same
// Document shape, so static and dynamic sources merge uniformly.
type Source struct {
	// Name labels the source in errors and logs. Defaults to Path.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Type selects the source implementation.
	Type SourceType `json:"type" yaml:"type"`

	// Path is the file or executable path.
	Path string `json:"path" yaml:"path"`

	// Timeout bounds dynamic source invocations and Starlark evaluation.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

func (s Source) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Path
}

// DefaultSourceTimeout bounds dynamic source invocations that do not carry
// their own timeout.
const DefaultSourceTimeout = 30 * time.Second

// Loader turns Sources into Documents. Dynamic sources are driven through
// the module invocation channel; every document is validated against the
// inventory schema before it is used.
type Loader struct {
	channel  *modexec.Channel
	schemas  *SchemaRegistry
	starlark *starlarkEvaluator
	logger   zerolog.Logger
}

// NewLoader creates a loader over an invocation channel.
func NewLoader(channel *modexec.Channel, logger zerolog.Logger) *Loader {
	return &Loader{
		channel:  channel,
		schemas:  NewSchemaRegistry(),
		starlark: newStarlarkEvaluator(),
		logger:   logger.With().Str("component", "inventory-loader").Logger(),
	}
}

// Load produces a validated Document from one source.
func (l *Loader) Load(ctx context.Context, src Source) (*Document, error) {
	switch src.Type {
	case SourceTypeStatic:
		return l.loadStatic(src)
	case SourceTypeExec:
		return l.loadExec(ctx, src)
	case SourceTypeStarlark:
		return l.loadStarlark(ctx, src)
	default:
		return nil, NewSourceError(src.label(), fmt.Sprintf("unknown source type %q", src.Type), nil)
	}
}

func (l *Loader) loadStatic(src Source) (*Document, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, NewSourceError(src.label(), "failed to read inventory file", err)
	}

	var raw map[string]interface{}
	switch ext := strings.ToLower(filepath.Ext(src.Path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, NewSourceError(src.label(), "failed to parse YAML inventory", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, NewSourceError(src.label(), "failed to parse JSON inventory", err)
		}
	}

	return l.documentFromRaw(src, raw)
}

func (l *Loader) loadExec(ctx context.Context, src Source) (*Document, error) {
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}

	result, err := l.channel.InvokeArgv(ctx, src.Path, []string{"--list"}, nil, timeout)
	if err != nil {
		return nil, NewSourceError(src.label(), "dynamic source --list invocation failed", err)
	}
	if result.Failed {
		return nil, NewSourceError(src.label(),
			fmt.Sprintf("dynamic source --list exited with code %d", result.ExitCode), nil)
	}

	doc, err := l.documentFromRaw(src, result.Raw)
	if err != nil {
		return nil, err
	}

	// --host fallback: only consulted when the source supplies no
	// _meta.hostvars at all. When _meta is present it wins outright and the
	// per-host form is never invoked.
	if len(doc.Meta.HostVars) == 0 {
		if err := l.loadHostVarsFallback(ctx, src, doc, timeout); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

func (l *Loader) loadHostVarsFallback(ctx context.Context, src Source, doc *Document, timeout time.Duration) error {
	for _, host := range doc.HostNames() {
		result, err := l.channel.InvokeArgv(ctx, src.Path, []string{"--host", host}, nil, timeout)
		if err != nil {
			return NewSourceError(src.label(),
				fmt.Sprintf("dynamic source --host %s invocation failed", host), err)
		}
		if result.Failed {
			return NewSourceError(src.label(),
				fmt.Sprintf("dynamic source --host %s exited with code %d", host, result.ExitCode), nil)
		}
		if err := l.schemas.ValidateHostVars(result.Raw); err != nil {
			return NewSourceError(src.label(),
				fmt.Sprintf("--host %s output failed validation", host), err)
		}
		if len(result.Raw) > 0 {
			doc.Meta.HostVars[host] = result.Raw
		}
	}
	return nil
}

func (l *Loader) loadStarlark(ctx context.Context, src Source) (*Document, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, NewSourceError(src.label(), "failed to read starlark source", err)
	}

	timeout := src.Timeout
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}

	raw, err := l.starlark.Evaluate(ctx, src.Path, string(data), timeout)
	if err != nil {
		return nil, NewSourceError(src.label(), "starlark evaluation failed", err)
	}

	return l.documentFromRaw(src, raw)
}

// documentFromRaw validates the wire-shaped mapping and converts it into a
// typed Document.
func (l *Loader) documentFromRaw(src Source, raw map[string]interface{}) (*Document, error) {
	if raw == nil {
		raw = map[string]interface{}{}
	}

	if err := l.schemas.ValidateDocument(raw); err != nil {
		return nil, NewSourceError(src.label(), "inventory document failed validation", err)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, NewSourceError(src.label(), "failed to re-encode inventory document", err)
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, NewSourceError(src.label(), "failed to decode inventory document", err)
	}

	l.logger.Debug().
		Str("source", src.label()).
		Int("groups", len(doc.Groups)).
		Int("hostvars", len(doc.Meta.HostVars)).
		Msg("Loaded inventory source")

	return doc, nil
}
