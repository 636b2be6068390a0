// Package inventory builds host/group graphs from static files and dynamic
// inventory executables and resolves, for every host, its final variable
// mapping under a fixed precedence order.
package inventory

import (
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultRootGroup is the implicit top ancestor of every other group.
const DefaultRootGroup = "all"

// DefaultUngroupedGroup collects hosts that belong to no explicit group.
const DefaultUngroupedGroup = "ungrouped"

// metaKey is the reserved document key carrying host variables.
const metaKey = "_meta"

// Group is a named collection of direct host members, child group names, and
// group variables. Groups form a DAG via the children relation.
type Group struct {
	// Hosts lists direct host-name members.
	Hosts []string `json:"hosts,omitempty"`

	// Children lists child group names.
	Children []string `json:"children,omitempty"`

	// Vars maps variable name to a JSON scalar, sequence, or nested mapping.
	Vars map[string]interface{} `json:"vars,omitempty"`
}

// Meta carries variables attached directly to hosts, independent of group
// membership. These are the highest-precedence variable source.
type Meta struct {
	HostVars map[string]map[string]interface{} `json:"hostvars"`
}

// Document is the wire shape shared by static inventory files and dynamic
// sources' --list output: a mapping of group name to Group plus the reserved
// _meta entry.
type Document struct {
	Groups map[string]*Group
	Meta   Meta
}

// NewDocument creates an empty inventory document.
func NewDocument() *Document {
	return &Document{
		Groups: make(map[string]*Group),
		Meta:   Meta{HostVars: make(map[string]map[string]interface{})},
	}
}

// GroupNames returns the group names in the document, sorted.
func (d *Document) GroupNames() []string {
	names := make([]string, 0, len(d.Groups))
	for name := range d.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HostNames returns every host referenced by the document, either as a group
// member or through _meta.hostvars, sorted and deduplicated.
func (d *Document) HostNames() []string {
	seen := make(map[string]bool)
	for _, group := range d.Groups {
		for _, host := range group.Hosts {
			seen[host] = true
		}
	}
	for host := range d.Meta.HostVars {
		seen[host] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON renders the document in the --list wire shape, with group
// entries and _meta side by side at the top level.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Groups)+1)
	for name, group := range d.Groups {
		if name == metaKey {
			return nil, fmt.Errorf("group name %q is reserved", metaKey)
		}
		out[name] = group
	}
	out[metaKey] = d.Meta
	return json.Marshal(out)
}

// UnmarshalJSON parses the --list wire shape.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	d.Groups = make(map[string]*Group, len(raw))
	d.Meta = Meta{HostVars: make(map[string]map[string]interface{})}

	for name, msg := range raw {
		if name == metaKey {
			if err := json.Unmarshal(msg, &d.Meta); err != nil {
				return fmt.Errorf("failed to parse _meta: %w", err)
			}
			if d.Meta.HostVars == nil {
				d.Meta.HostVars = make(map[string]map[string]interface{})
			}
			continue
		}

		group := &Group{}
		// A group may be given as a bare host list instead of an object.
		if err := json.Unmarshal(msg, group); err != nil {
			var hosts []string
			if listErr := json.Unmarshal(msg, &hosts); listErr != nil {
				return fmt.Errorf("failed to parse group %q: %w", name, err)
			}
			group.Hosts = hosts
		}
		d.Groups[name] = group
	}

	return nil
}

// Equal reports whether two documents describe the same inventory. Used by
// round-trip checks; ordering of host and children lists is significant.
func (d *Document) Equal(other *Document) bool {
	a, err := json.Marshal(d)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return string(a) == string(b)
}
