// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package vars implements the engine's variable context: a JSON-object
// shaped mapping threaded through every task. It is the sole conduit of
// information between tasks, cloned cheaply per loop iteration and mutated
// only by register bindings, module-returned variables, and the setup
// module's bulk variable load.
package vars

import (
	"encoding/json"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"sigs.k8s.io/yaml"
)

// Vars is the context: a JSON-object-shaped mapping from string keys to
// arbitrary JSON values (null, bool, number, string, slice, or nested map).
type Vars map[string]any

// New returns an empty context.
func New() Vars {
	return Vars{}
}

// Clone returns a shallow top-level copy, cheap enough to take once per
// loop iteration. Nested values are shared until overwritten by Insert,
// which always replaces (never mutates in place) the value at a key.
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Insert sets or overwrites a top-level binding, returning the receiver for
// chaining.
func (v Vars) Insert(key string, value any) Vars {
	v[key] = value
	return v
}

// Extend shallow-merges other into v at the top level; keys in other win.
func (v Vars) Extend(other Vars) Vars {
	for k, val := range other {
		v[k] = val
	}
	return v
}

// ToJSON renders the context to its canonical JSON representation, the
// contract the template renderer consumes.
func (v Vars) ToJSON() ([]byte, error) {
	return json.Marshal(map[string]any(v))
}

// FromJSON builds a Vars from a canonical JSON object. The root value must
// be a JSON object; any other shape is rejected so the "context is always a
// valid JSON object" guarantee in §4.1 holds by construction.
func FromJSON(data []byte) (Vars, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errNotObject
	}
	return Vars(m), nil
}

// FromYAML decodes a YAML document into a Vars, routing through
// sigs.k8s.io/yaml so values take on the same number/bool/string typing
// encoding/json would produce (rather than YAML's own richer native types),
// keeping every Vars in the single canonical JSON-compatible shape the
// renderer and the rest of the engine assume.
func FromYAML(data []byte) (Vars, error) {
	jsonBytes, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, err
	}
	return FromJSON(jsonBytes)
}

// DeepMerge recursively merges b into a: keys in b overwrite keys of the
// same name in a at every depth; non-mapping values are replaced wholesale
// rather than concatenated or averaged. It is implemented on top of RFC
// 7396 JSON Merge Patch (b is the "patch", a is the "original"), which is
// exactly this contract — including b's explicit JSON nulls deleting the
// corresponding key in a, treated here as the sensible default for an
// otherwise unspecified case.
func DeepMerge(a, b any) (any, error) {
	aBytes, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	merged, err := jsonpatch.MergePatch(aBytes, bBytes)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(merged, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeepMergeVars merges other into v (keys in other win at every depth) and
// returns the result as a Vars. Both operands must encode as JSON objects.
func DeepMergeVars(v, other Vars) (Vars, error) {
	merged, err := DeepMerge(map[string]any(v), map[string]any(other))
	if err != nil {
		return nil, err
	}
	m, ok := merged.(map[string]any)
	if !ok {
		return nil, errNotObject
	}
	return Vars(m), nil
}

var errNotObject = jsonObjectError{}

type jsonObjectError struct{}

func (jsonObjectError) Error() string {
	return "value is not a JSON object"
}
