// Package datamodel loads and navigates the merged key-value tree that
// device resolvers consume. The tree is schema-agnostic: every architecture
// keeps its own structure under its own top-level key.
package datamodel

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Model is the merged data model. Top-level keys identify architectures
// (e.g. "sdwan", "catalyst_center") or a flat "devices" list.
type Model map[string]any

// RawRecord is a single schema-specific device node before normalization.
type RawRecord map[string]any

// Load reads one or more YAML files and merges them into a single model.
// Later files win on top-level key collisions.
func Load(paths ...string) (Model, error) {
	merged := Model{}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read data model %s: %w", path, err)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse data model %s: %w", path, err)
		}
		for k, v := range doc {
			merged[k] = v
		}
	}
	return merged, nil
}

// TopLevelKeys returns the model's top-level keys, sorted for stable
// diagnostics.
func (m Model) TopLevelKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether a top-level key exists in the model.
func (m Model) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Section returns the named top-level key as a mapping. The second return
// is false when the key is absent or not a mapping.
func (m Model) Section(key string) (map[string]any, bool) {
	return AsMap(m[key])
}

// AsMap converts a decoded YAML value to a string-keyed map.
func AsMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case RawRecord:
		return t, true
	default:
		return nil, false
	}
}

// AsList converts a decoded YAML value to a slice of records, skipping
// non-mapping elements.
func AsList(v any) []RawRecord {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		if m, ok := AsMap(item); ok {
			records = append(records, RawRecord(m))
		}
	}
	return records
}

// String returns the named field rendered as a string. Numeric scalars are
// stringified (YAML authors write chassis IDs and ports without quotes);
// missing fields and non-scalar values return "".
func (r RawRecord) String(key string) string {
	return Stringify(r[key])
}

// Map returns a nested mapping field, or an empty map when absent.
func (r RawRecord) Map(key string) map[string]any {
	if m, ok := AsMap(r[key]); ok {
		return m
	}
	return map[string]any{}
}

// Clone returns a shallow copy of the record. Nested values are shared.
func (r RawRecord) Clone() RawRecord {
	out := make(RawRecord, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stringify renders a scalar YAML value as a string. Mappings, sequences
// and nil render as "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int, int64, uint64, float64, bool:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}
