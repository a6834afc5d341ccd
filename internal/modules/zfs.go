// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"sort"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// Zfs manages a ZFS dataset's existence and properties (original_source's
// zfs.rs) by shelling out to the zfs(8) CLI: existence via `zfs list`,
// properties via `zfs get`/`zfs set`.
type Zfs struct{}

func init() { module.Register(Zfs{}) }

func (Zfs) Name() string              { return "zfs" }
func (Zfs) ForceStringOnParams() bool { return true }

type zfsParams struct {
	Name         string            `yaml:"name" validate:"required"`
	State        string            `yaml:"state" validate:"omitempty,oneof=present absent info"`
	Properties   map[string]string `yaml:"properties"`
	CreateParent bool              `yaml:"create_parent"`
	Recursive    bool              `yaml:"recursive"`
}

func (Zfs) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p zfsParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "info"
	}

	exists, err := zfsDatasetExists(p.Name)
	if err != nil {
		return module.Result{}, nil, err
	}

	switch p.State {
	case "info":
		result, runErr := RunCommand("zfs", "get", "all", p.Name)
		if runErr != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, runErr, "zfs get")
		}
		return module.Result{Output: p.Name, Extra: result}, nil, nil

	case "absent":
		if !exists {
			return module.Result{Output: p.Name}, nil, nil
		}
		if ctx.Diff != nil {
			ctx.Diff.Emit(p.Name+" present", p.Name+" absent")
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.Name}, nil, nil
		}
		args := []string{"destroy"}
		if p.Recursive {
			args = append(args, "-r")
		}
		args = append(args, p.Name)
		if result, err := RunCommand("zfs", args...); err != nil || result.RC != 0 {
			return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
		}
		return module.Result{Changed: true, Output: p.Name}, nil, nil

	default: // present
		var changed bool
		if !exists {
			if ctx.Diff != nil {
				ctx.Diff.Emit(p.Name+" absent", p.Name+" present "+formatProperties(p.Properties))
			}
			if ctx.CheckMode {
				return module.Result{Changed: true, Output: p.Name}, nil, nil
			}
			args := []string{"create"}
			if p.CreateParent {
				args = append(args, "-p")
			}
			for k, v := range p.Properties {
				args = append(args, "-o", k+"="+v)
			}
			args = append(args, p.Name)
			if result, runErr := RunCommand("zfs", args...); runErr != nil || result.RC != 0 {
				return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
			}
			changed = true
		} else if len(p.Properties) > 0 {
			for k, v := range p.Properties {
				current, getErr := zfsProperty(p.Name, k)
				if getErr == nil && current == v {
					continue
				}
				if ctx.Diff != nil {
					ctx.Diff.Emit(k+"="+current, k+"="+v)
				}
				if ctx.CheckMode {
					changed = true
					continue
				}
				if result, setErr := RunCommand("zfs", "set", k+"="+v, p.Name); setErr != nil || result.RC != 0 {
					return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
				}
				changed = true
			}
		}
		return module.Result{Changed: changed, Output: p.Name}, nil, nil
	}
}

func zfsDatasetExists(name string) (bool, error) {
	result, err := RunCommand("zfs", "list", "-H", "-o", "name", name)
	if err != nil {
		return false, anverr.Wrap(anverr.SubprocessFail, err, "zfs list")
	}
	return result.RC == 0, nil
}

func zfsProperty(dataset, key string) (string, error) {
	result, err := RunCommand("zfs", "get", "-H", "-o", "value", key, dataset)
	if err != nil {
		return "", anverr.Wrap(anverr.SubprocessFail, err, "zfs get "+key)
	}
	return strings.TrimSpace(result.Stdout), nil
}

func formatProperties(props map[string]string) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + props[k]
	}
	return strings.Join(parts, ",")
}
