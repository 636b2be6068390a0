package inventory

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for inventory document validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}

	// Built-in schemas are compiled from constants and cannot fail.
	_ = sr.RegisterSchema("document", builtinDocumentSchema)
	_ = sr.RegisterSchema("hostvars", builtinHostVarsSchema)

	return sr
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ValidateDocument validates a parsed inventory document (the --list wire
// shape) before it is turned into a group graph.
func (sr *SchemaRegistry) ValidateDocument(doc map[string]interface{}) error {
	return sr.ValidateAgainstSchema("document", doc)
}

// ValidateHostVars validates a --host response: a flat variable mapping.
func (sr *SchemaRegistry) ValidateHostVars(vars map[string]interface{}) error {
	return sr.ValidateAgainstSchema("hostvars", vars)
}

// Built-in schema definitions

const builtinDocumentSchema = `
// Inventory document schema: group name -> group body, plus _meta.hostvars.
#Group: {
	// Hosts lists direct host-name members
	hosts?: [...string]

	// Children lists child group names
	children?: [...string]

	// Vars maps variable names to arbitrary JSON values
	vars?: {...}
}

{
	// Variables attached directly to hosts
	"_meta"?: {
		hostvars: {[string]: {...}}
	}

	// Every other top-level key is a group; a bare host list is accepted
	// as shorthand for {hosts: [...]}
	[!="_meta"]: #Group | [...string]
}
`

const builtinHostVarsSchema = `
// A single host's variable mapping, as returned by --host <name>.
{...}
`
