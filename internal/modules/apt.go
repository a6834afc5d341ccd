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

// Apt reconciles the installed-package set against a desired name list
// (original_source's apt.rs): the canonical set-reconciliation pattern —
// diff the desired set against the actual set, then shell out once for
// whatever's missing or extra.
type Apt struct{}

func init() { module.Register(Apt{}) }

func (Apt) Name() string              { return "apt" }
func (Apt) ForceStringOnParams() bool { return false }

type aptParams struct {
	Executable string   `yaml:"executable"`
	ExtraArgs  string   `yaml:"extra_args"`
	Name       []string `yaml:"name" validate:"required,min=1"`
	State      string   `yaml:"state" validate:"omitempty,oneof=present absent latest build-dep fixed"`
	Purge      bool     `yaml:"purge"`
}

func (Apt) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p aptParams
	if err := module.DecodeParams(ctx.Params, &p, false); err != nil {
		return module.Result{}, nil, err
	}
	if p.Executable == "" {
		p.Executable = "apt-get"
	}
	if p.State == "" {
		p.State = "present"
	}

	installed, err := installedDpkgPackages()
	if err != nil {
		return module.Result{}, nil, err
	}

	var toAct []string
	for _, name := range p.Name {
		_, isInstalled := installed[name]
		switch p.State {
		case "absent":
			if isInstalled {
				toAct = append(toAct, name)
			}
		default:
			if !isInstalled {
				toAct = append(toAct, name)
			}
		}
	}

	if len(toAct) == 0 {
		return module.Result{Output: strings.Join(p.Name, ",")}, nil, nil
	}

	if ctx.Status != nil {
		if p.State == "absent" {
			ctx.Status.Remove(toAct)
		} else {
			ctx.Status.Add(toAct)
		}
	}
	if ctx.Diff != nil {
		before := strings.Join(sortedKeys(installed), "\n")
		ctx.Diff.Emit(before, before+"\n"+strings.Join(toAct, "\n"))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: strings.Join(toAct, ",")}, nil, nil
	}

	args := aptArgs(p, toAct)
	result, err := RunCommand(p.Executable, args...)
	if err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, err, "running "+p.Executable)
	}
	if result.RC != 0 {
		return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
	}
	return module.Result{Changed: true, Output: strings.Join(toAct, ","), Extra: result}, nil, nil
}

func aptArgs(p aptParams, packages []string) []string {
	args := []string{"-y"}
	switch p.State {
	case "absent":
		if p.Purge {
			args = append(args, "purge")
		} else {
			args = append(args, "remove")
		}
	case "build-dep":
		args = append(args, "build-dep")
	default:
		args = append(args, "install")
	}
	if p.ExtraArgs != "" {
		args = append(args, strings.Fields(p.ExtraArgs)...)
	}
	return append(args, packages...)
}

// installedDpkgPackages parses `dpkg-query -W -f='${Package} ${Status}\n'`
// output into a set of installed package names.
func installedDpkgPackages() (map[string]struct{}, error) {
	result, err := RunCommand("dpkg-query", "-W", "-f=${Package} ${Status}\\n")
	if err != nil {
		return nil, anverr.Wrap(anverr.SubprocessFail, err, "querying dpkg")
	}
	installed := map[string]struct{}{}
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		if fields[len(fields)-1] == "installed" {
			installed[fields[0]] = struct{}{}
		}
	}
	return installed, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
