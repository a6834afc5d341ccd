// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"fmt"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// IniFile manages a single option=value entry within an optional [section]
// of an INI-style file (original_source's ini_file.rs).
type IniFile struct{}

func init() { module.Register(IniFile{}) }

func (IniFile) Name() string              { return "ini_file" }
func (IniFile) ForceStringOnParams() bool { return true }

type iniFileParams struct {
	Path    string `yaml:"path" validate:"required"`
	Section string `yaml:"section"`
	Option  string `yaml:"option" validate:"required"`
	Value   string `yaml:"value"`
	State   string `yaml:"state" validate:"omitempty,oneof=present absent"`
}

func (IniFile) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p iniFileParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.State == "present" && p.Value == "" {
		return module.Result{}, nil, anverr.New(anverr.InvalidData, "value is required when state=present")
	}

	before, err := readLines(p.Path)
	if err != nil {
		return module.Result{}, nil, err
	}

	sectionStart, sectionEnd, sectionMissing := findIniSection(before, p.Section)
	scoped := before[sectionStart:sectionEnd]
	reconciled, changed := reconcileKeyedLine(scoped, p.Option, p.Value, p.State == "present", "=", ";")
	if !changed {
		return module.Result{Output: p.Option}, nil, nil
	}

	after := make([]string, 0, len(before)+2)
	after = append(after, before[:sectionStart]...)
	if sectionMissing && p.Section != "" && p.State == "present" {
		after = append(after, fmt.Sprintf("[%s]", p.Section))
	}
	after = append(after, reconciled...)
	after = append(after, before[sectionEnd:]...)

	if ctx.Diff != nil {
		ctx.Diff.Emit(strings.Join(before, "\n"), strings.Join(after, "\n"))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Option}, nil, nil
	}
	if err := writeLines(p.Path, after); err != nil {
		return module.Result{}, nil, err
	}
	return module.Result{Changed: true, Output: p.Option}, nil, nil
}

// findIniSection returns the [start,end) line range belonging to section
// (exclusive of its own header line), and whether the section header was
// found at all. An empty section means "before the first section header".
// If the named section does not exist, the range is an empty insertion
// point at end of file and missing is true.
func findIniSection(lines []string, section string) (start, end int, missing bool) {
	if section == "" {
		for i, line := range lines {
			if isIniHeader(line) {
				return 0, i, false
			}
		}
		return 0, len(lines), false
	}

	header := fmt.Sprintf("[%s]", section)
	start = -1
	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			start = i + 1
			break
		}
	}
	if start == -1 {
		return len(lines), len(lines), true
	}
	for i := start; i < len(lines); i++ {
		if isIniHeader(lines[i]) {
			return start, i, false
		}
	}
	return start, len(lines), false
}

func isIniHeader(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]")
}
