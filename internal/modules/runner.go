// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package modules implements the built-in module catalogue (§4.5): the
// external commands and files each module drives, needed end to end to
// exercise the task engine.
package modules

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
)

// CommandResult captures a subprocess invocation's outcome, the shape every
// "subprocess wrapper" pattern module (§4.5) returns as its Extra field.
type CommandResult struct {
	RC     int    `json:"rc"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// RunCommand executes name with args, honouring the RASH_TEST_<NAME>
// environment escape hatch (§9 Open Questions, carried over verbatim from
// original_source): when set, its value replaces the binary invoked, so
// tests can substitute a fake executable without mocking exec.Cmd itself.
// <NAME> is name upper-cased with non-alphanumeric characters replaced by
// underscore.
func RunCommand(name string, args ...string) (CommandResult, error) {
	binary := name
	envKey := "RASH_TEST_" + sanitizeEnvName(name)
	if override := os.Getenv(envKey); override != "" {
		binary = override
	}

	cmd := exec.Command(binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.RC = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

func sanitizeEnvName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
