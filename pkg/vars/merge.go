// Package vars implements the variable precedence engine used by the
// inventory resolver: a deep merge over JSON-shaped mappings with defined
// override rules.
package vars

// Merge combines base and overlay into a new mapping. Scalars and sequences
// in overlay replace the corresponding key in base entirely; nested mappings
// are merged recursively, key by key, so an overlay supplying one nested key
// does not erase sibling keys from the base.
//
// Merge is order-sensitive and associative: Merge(Merge(a, b), c) equals
// applying a, b, c left to right. Callers supply mappings in ascending
// precedence order. Neither input is mutated.
func Merge(base, overlay map[string]interface{}) map[string]interface{} {
	if base == nil && overlay == nil {
		return map[string]interface{}{}
	}

	out := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}

	for k, ov := range overlay {
		bm, baseIsMap := out[k].(map[string]interface{})
		om, overlayIsMap := ov.(map[string]interface{})
		if baseIsMap && overlayIsMap {
			out[k] = Merge(bm, om)
			continue
		}
		out[k] = ov
	}

	return out
}

// MergeAll folds a sequence of mappings left to right with Merge.
// An empty sequence yields an empty mapping.
func MergeAll(layers ...map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for _, layer := range layers {
		out = Merge(out, layer)
	}
	return out
}

// Copy returns a deep copy of a JSON-shaped mapping. Values that are neither
// mappings nor sequences are shared, which is safe for JSON scalar types.
func Copy(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case map[string]interface{}:
		return Copy(tv)
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i, e := range tv {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
