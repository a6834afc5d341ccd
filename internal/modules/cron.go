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

// Cron manages a single named crontab entry, identified by a "# name"
// marker comment on the line preceding it (original_source's cron.rs).
type Cron struct{}

func init() { module.Register(Cron{}) }

func (Cron) Name() string              { return "cron" }
func (Cron) ForceStringOnParams() bool { return true }

type cronParams struct {
	Name     string `yaml:"name" validate:"required"`
	Job      string `yaml:"job"`
	State    string `yaml:"state" validate:"omitempty,oneof=present absent"`
	Minute   string `yaml:"minute"`
	Hour     string `yaml:"hour"`
	Day      string `yaml:"day"`
	Month    string `yaml:"month"`
	Weekday  string `yaml:"weekday"`
	CronFile string `yaml:"cron_file"`
}

func (Cron) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p cronParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.CronFile == "" {
		p.CronFile = "/etc/crontab"
	}
	if p.State == "present" && p.Job == "" {
		return module.Result{}, nil, anverr.New(anverr.InvalidData, "job is required when state=present")
	}
	for _, field := range []*string{&p.Minute, &p.Hour, &p.Day, &p.Month, &p.Weekday} {
		if *field == "" {
			*field = "*"
		}
	}

	before, err := readLines(p.CronFile)
	if err != nil {
		return module.Result{}, nil, err
	}

	marker := "# " + p.Name
	entry := fmt.Sprintf("%s %s %s %s %s %s", p.Minute, p.Hour, p.Day, p.Month, p.Weekday, p.Job)

	markerAt := -1
	for i, line := range before {
		if strings.TrimSpace(line) == marker {
			markerAt = i
			break
		}
	}

	var after []string
	var changed bool
	switch {
	case p.State == "absent" && markerAt == -1:
		after, changed = before, false
	case p.State == "absent":
		end := markerAt + 1
		if end < len(before) {
			end++ // also drop the entry line following the marker
		}
		after = append(append([]string{}, before[:markerAt]...), before[end:]...)
		changed = true
	case markerAt == -1:
		after = append(append([]string{}, before...), marker, entry)
		changed = true
	default:
		existingEntry := ""
		if markerAt+1 < len(before) {
			existingEntry = before[markerAt+1]
		}
		if existingEntry == entry {
			after, changed = before, false
			break
		}
		after = append([]string{}, before...)
		if markerAt+1 < len(after) {
			after[markerAt+1] = entry
		} else {
			after = append(after, entry)
		}
		changed = true
	}

	if !changed {
		return module.Result{Output: p.Name}, nil, nil
	}
	if ctx.Diff != nil {
		ctx.Diff.Emit(strings.Join(before, "\n"), strings.Join(after, "\n"))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Name}, nil, nil
	}
	if err := writeLines(p.CronFile, after); err != nil {
		return module.Result{}, nil, err
	}
	return module.Result{Changed: true, Output: p.Name}, nil, nil
}
