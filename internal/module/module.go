// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package module defines the contract every built-in enforces (§4.5): a
// stable name, an exec function taking rendered parameters and the current
// context, and the structured result every invocation returns. A
// compile-time registry maps module names to implementations — there is no
// runtime plugin loading (Design Notes §9, "closed-world polymorphism").
package module

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/logging"
	"github.com/anvil-sh/anvil/internal/vars"
	"github.com/go-playground/validator/v10"
	yaml "gopkg.in/yaml.v3"
)

// Result is the structured value every module invocation returns (§3).
type Result struct {
	Changed bool   `json:"changed"`
	Output  string `json:"output,omitempty"`
	Extra   any    `json:"extra,omitempty"`
}

// ToJSON serialises a Result to its register/log encoding (§6).
func (r Result) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// Context is what a module's Exec receives: the rendered parameters (still
// a raw YAML-decoded value; each module decodes its own shape), the
// variable context at the point of invocation, whether the run is in check
// mode, and the sink the module narrates diffs and package-set changes to.
type Context struct {
	Params    any
	Vars      vars.Vars
	CheckMode bool
	Diff      logging.DiffSink
	Status    *logging.StatusLogger
}

// Module is the capability every catalogue entry satisfies.
type Module interface {
	// Name is the stable identifier used as the task's module key.
	Name() string
	// Exec performs (or, in check mode, previews) the module's state
	// change and returns its result plus an optional set of new variables
	// to merge into the outgoing context (only `setup` uses the latter).
	Exec(ctx Context) (Result, vars.Vars, error)
	// ForceStringOnParams reports whether scalar parameters should be
	// coerced to strings before structured decoding (§4.5's
	// force_string_on_params knob). Most modules return false.
	ForceStringOnParams() bool
}

// registry is the compile-time name -> Module lookup table, populated by
// each module's init() via Register. Re-implementations may not register a
// plugin at runtime; the set is fixed at build time (Design Notes §9).
var registry = map[string]Module{}

// Register adds m to the catalogue under its own Name(). Called from each
// module package's init().
func Register(m Module) {
	registry[m.Name()] = m
}

// Lookup returns the module registered under name, or false if no such
// module exists in the catalogue.
func Lookup(name string) (Module, bool) {
	m, ok := registry[name]
	return m, ok
}

// Names returns every registered module name, for validating task YAML
// keys against the catalogue.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

var paramsValidator = validator.New(validator.WithRequiredStructEnabled())

// DecodeParams is the shared parameter-parse helper every module calls
// (§4.5.4): it YAML-decodes raw into dst with unknown fields rejected, runs
// struct-tag validation, and optionally stringifies scalar leaves of raw
// first when forceString is true (the force_string_on_params knob).
func DecodeParams(raw any, dst any, forceString bool) error {
	if forceString {
		raw = stringifyScalars(raw)
	}

	encoded, err := yaml.Marshal(raw)
	if err != nil {
		return anverr.Wrap(anverr.InvalidData, err, "encoding module parameters")
	}

	dec := yaml.NewDecoder(bytes.NewReader(encoded))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		return anverr.Wrap(anverr.InvalidData, err, "decoding module parameters")
	}

	if err := paramsValidator.Struct(dst); err != nil {
		return anverr.Wrap(anverr.InvalidData, err, "validating module parameters")
	}
	return nil
}

// stringifyScalars walks a decoded YAML value and converts every scalar
// leaf (bool, int, float) to its string form, leaving maps/slices/strings
// structurally unchanged. Used by modules whose schema predates typed
// scalars (e.g. ini_file's values).
func stringifyScalars(raw any) any {
	switch v := raw.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = stringifyScalars(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = stringifyScalars(val)
		}
		return out
	case string, nil:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
