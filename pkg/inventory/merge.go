package inventory

import (
	"github.com/convoyops/convoy/pkg/vars"
)

// MergeDocuments folds documents left to right: later sources' group
// definitions are merged into earlier ones with host-set union, children-set
// union, and variable overlay; conflicting non-mapping values from a later
// source override earlier ones. _meta.hostvars entries merge per host.
func MergeDocuments(docs ...*Document) *Document {
	out := NewDocument()

	for _, doc := range docs {
		if doc == nil {
			continue
		}

		for name, group := range doc.Groups {
			existing, ok := out.Groups[name]
			if !ok {
				out.Groups[name] = &Group{
					Hosts:    unionStrings(nil, group.Hosts),
					Children: unionStrings(nil, group.Children),
					Vars:     vars.Copy(group.Vars),
				}
				continue
			}
			existing.Hosts = unionStrings(existing.Hosts, group.Hosts)
			existing.Children = unionStrings(existing.Children, group.Children)
			existing.Vars = vars.Merge(existing.Vars, group.Vars)
		}

		for host, hostVars := range doc.Meta.HostVars {
			out.Meta.HostVars[host] = vars.Merge(out.Meta.HostVars[host], hostVars)
		}
	}

	return out
}

// unionStrings appends the elements of add not already present in base,
// preserving first-seen order.
func unionStrings(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	out := make([]string, 0, len(base)+len(add))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
