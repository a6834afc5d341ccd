// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// Setup bulk-loads variables from external files into the task context
// (original_source's setup.rs): the catalogue's sole context-mutation
// module. `.env` files land in the `env` namespace; YAML/JSON files merge
// as top-level context variables. Built on koanf's layered providers,
// the same library used elsewhere in this codebase for structured file
// loading, repurposed here for host-level run variables.
type Setup struct{}

func init() { module.Register(Setup{}) }

func (Setup) Name() string              { return "setup" }
func (Setup) ForceStringOnParams() bool { return false }

type setupParams struct {
	From []string `yaml:"from" validate:"required,min=1"`
}

func (Setup) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var raw any
	switch v := ctx.Params.(type) {
	case map[string]any:
		raw = v
	default:
		raw = map[string]any{"from": v}
	}

	var p setupParams
	if err := module.DecodeParams(raw, &p, false); err != nil {
		return module.Result{}, nil, err
	}

	loaded := make([]string, 0, len(p.From))
	newVars := vars.Vars{}
	envVars := map[string]any{}

	for _, path := range p.From {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".env":
			loadedEnv, err := loadDotEnv(path)
			if err != nil {
				return module.Result{}, nil, err
			}
			for key, val := range loadedEnv {
				envVars[key] = val
			}
		default: // .yaml, .yml, .json all parse as YAML (a JSON superset)
			k := koanf.New(".")
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return module.Result{}, nil, anverr.Wrap(anverr.NotFound, err, "loading "+path)
			}
			// Raw() keeps nested mappings intact; All() flattens keys on
			// "." and would turn "db: {host: x}" into "db.host", hiding
			// it from a template referencing db.host as a nested value.
			for key, val := range k.Raw() {
				newVars[key] = val
			}
		}
		loaded = append(loaded, path)
	}
	if len(envVars) > 0 {
		newVars["env"] = envVars
	}

	if len(loaded) == 0 {
		return module.Result{Output: "No files specified to load"}, nil, nil
	}
	return module.Result{Changed: true, Output: "Loaded: " + strings.Join(loaded, ", ")}, newVars, nil
}

// loadDotEnv parses KEY=VALUE lines from a .env file, ignoring blank lines
// and #-prefixed comments.
func loadDotEnv(path string) (map[string]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return out, nil
}
