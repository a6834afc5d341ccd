// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"os/exec"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// Command runs an arbitrary subprocess (the `command:` task shorthand
// original_source's task.rs dispatches straight to the module catalogue
// under the name "command"): the simplest subprocess-wrapper pattern —
// always changed, never idempotent, the caller is expected to guard
// repetition with `creates`/`when`.
type Command struct{}

func init() { module.Register(Command{}) }

func (Command) Name() string              { return "command" }
func (Command) ForceStringOnParams() bool { return false }

type commandParams struct {
	Argv    []string `yaml:"argv"`
	Chdir   string   `yaml:"chdir"`
	Creates string   `yaml:"creates"`
	Removes string   `yaml:"removes"`
}

func (Command) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var line string
	var p commandParams
	switch v := ctx.Params.(type) {
	case string:
		line = v
	default:
		if err := module.DecodeParams(ctx.Params, &p, false); err != nil {
			return module.Result{}, nil, err
		}
	}
	if len(p.Argv) == 0 && line != "" {
		p.Argv = strings.Fields(line)
	}
	if len(p.Argv) == 0 {
		return module.Result{}, nil, anverr.New(anverr.InvalidData, "command requires argv or a raw command line")
	}

	if p.Creates != "" {
		if _, err := os.Stat(p.Creates); err == nil {
			return module.Result{Output: "skipped: " + p.Creates + " already exists"}, nil, nil
		}
	}
	if p.Removes != "" {
		if _, err := os.Stat(p.Removes); os.IsNotExist(err) {
			return module.Result{Output: "skipped: " + p.Removes + " already absent"}, nil, nil
		}
	}

	if ctx.CheckMode {
		return module.Result{Changed: true, Output: strings.Join(p.Argv, " ")}, nil, nil
	}

	result, err := runCommandIn(p.Chdir, p.Argv[0], p.Argv[1:]...)
	if err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.SubprocessFail, err, "running "+p.Argv[0])
	}
	if result.RC != 0 {
		return module.Result{Extra: result}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
	}
	return module.Result{Changed: true, Output: result.Stdout, Extra: result}, nil, nil
}

func runCommandIn(chdir, name string, args ...string) (CommandResult, error) {
	if chdir == "" {
		return RunCommand(name, args...)
	}
	cmd := exec.Command(name, args...)
	cmd.Dir = chdir
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.RC = exitErr.ExitCode()
		return result, nil
	}
	return result, err
}
