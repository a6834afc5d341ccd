// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"encoding/json"
	"os"
	"reflect"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// JSONFile manages a single dot-notation key path within a JSON document
// (original_source's json_file.rs), creating intermediate objects as
// needed and leaving the rest of the document untouched.
type JSONFile struct{}

func init() { module.Register(JSONFile{}) }

func (JSONFile) Name() string              { return "json_file" }
func (JSONFile) ForceStringOnParams() bool { return false }

type jsonFileParams struct {
	Path   string `yaml:"path" validate:"required"`
	Key    string `yaml:"key" validate:"required"`
	Value  any    `yaml:"value"`
	State  string `yaml:"state" validate:"omitempty,oneof=present absent"`
	Backup bool   `yaml:"backup"`
}

func (JSONFile) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p jsonFileParams
	if err := module.DecodeParams(ctx.Params, &p, false); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.State == "present" && p.Value == nil {
		return module.Result{}, nil, anverr.New(anverr.InvalidData, "value is required when state=present")
	}

	raw, err := os.ReadFile(p.Path)
	if err != nil && !os.IsNotExist(err) {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "reading "+p.Path)
	}
	doc := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.InvalidData, err, "parsing "+p.Path)
		}
	}

	path := strings.Split(p.Key, ".")
	before := cloneJSON(doc)
	var changed bool
	if p.State == "absent" {
		changed = deleteJSONPath(doc, path)
	} else {
		changed = setJSONPath(doc, path, p.Value)
	}
	if !changed {
		return module.Result{Output: p.Key}, nil, nil
	}

	beforeText, _ := json.MarshalIndent(before, "", "  ")
	afterText, _ := json.MarshalIndent(doc, "", "  ")
	if ctx.Diff != nil {
		ctx.Diff.Emit(string(beforeText), string(afterText))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Key}, nil, nil
	}
	if p.Backup && len(raw) > 0 {
		if err := os.WriteFile(p.Path+".bak", raw, 0o644); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "backing up "+p.Path)
		}
	}
	if err := os.WriteFile(p.Path, append(afterText, '\n'), 0o644); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "writing "+p.Path)
	}
	return module.Result{Changed: true, Output: p.Key}, nil, nil
}

func setJSONPath(doc map[string]any, path []string, value any) bool {
	node := doc
	for _, seg := range path[:len(path)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			node[seg] = next
		}
		node = next
	}
	leaf := path[len(path)-1]
	if existing, ok := node[leaf]; ok && reflect.DeepEqual(existing, value) {
		return false
	}
	node[leaf] = value
	return true
}

func deleteJSONPath(doc map[string]any, path []string) bool {
	node := doc
	for _, seg := range path[:len(path)-1] {
		next, ok := node[seg].(map[string]any)
		if !ok {
			return false
		}
		node = next
	}
	leaf := path[len(path)-1]
	if _, ok := node[leaf]; !ok {
		return false
	}
	delete(node, leaf)
	return true
}

func cloneJSON(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
