// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"fmt"
	"os"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// Sysctl manages a single key=value entry in a sysctl-style configuration
// file (original_source's sysctl.rs): one name/value pair kept present or
// absent among otherwise untouched lines.
type Sysctl struct{}

func init() { module.Register(Sysctl{}) }

func (Sysctl) Name() string              { return "sysctl" }
func (Sysctl) ForceStringOnParams() bool { return true }

type sysctlParams struct {
	Name       string `yaml:"name" validate:"required"`
	Value      string `yaml:"value"`
	State      string `yaml:"state" validate:"omitempty,oneof=present absent"`
	SysctlFile string `yaml:"sysctl_file"`
}

func (Sysctl) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p sysctlParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.SysctlFile == "" {
		p.SysctlFile = "/etc/sysctl.conf"
	}
	if p.State == "present" && p.Value == "" {
		return module.Result{}, nil, anverr.New(anverr.InvalidData, "value is required when state=present")
	}

	before, err := readLines(p.SysctlFile)
	if err != nil {
		return module.Result{}, nil, err
	}

	after, changed := reconcileKeyedLine(before, p.Name, p.Value, p.State == "present", "=", "#")
	if !changed {
		return module.Result{Output: p.Name}, nil, nil
	}

	if ctx.Diff != nil {
		ctx.Diff.Emit(strings.Join(before, "\n"), strings.Join(after, "\n"))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Name}, nil, nil
	}
	if err := writeLines(p.SysctlFile, after); err != nil {
		return module.Result{}, nil, err
	}
	return module.Result{Changed: true, Output: p.Name}, nil, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, anverr.Wrap(anverr.IOError, err, "reading "+path)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func writeLines(path string, lines []string) error {
	content := strings.Join(lines, "\n")
	if len(lines) > 0 {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return anverr.Wrap(anverr.IOError, err, "writing "+path)
	}
	return nil
}

// reconcileKeyedLine ensures a "key<sep>value" line exists or is removed
// among lines, skipping comment-prefixed lines when matching the key.
func reconcileKeyedLine(lines []string, key, value string, present bool, sep, commentPrefix string) ([]string, bool) {
	desired := fmt.Sprintf("%s %s %s", key, sep, value)
	found := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if commentPrefix != "" && strings.HasPrefix(trimmed, commentPrefix) {
			continue
		}
		parts := strings.SplitN(trimmed, sep, 2)
		if len(parts) == 2 && strings.TrimSpace(parts[0]) == key {
			found = i
			break
		}
	}

	if !present {
		if found == -1 {
			return lines, false
		}
		out := make([]string, 0, len(lines)-1)
		out = append(out, lines[:found]...)
		out = append(out, lines[found+1:]...)
		return out, true
	}

	if found == -1 {
		out := make([]string, len(lines), len(lines)+1)
		copy(out, lines)
		return append(out, desired), true
	}
	if strings.TrimSpace(lines[found]) == desired {
		return lines, false
	}
	out := make([]string, len(lines))
	copy(out, lines)
	out[found] = desired
	return out, true
}
