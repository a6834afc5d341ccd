// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package runconfig holds the flags a run of the engine is invoked with
// (§6/§7): the task file to execute, check/diff mode toggles, and the
// positional arguments exposed to tasks as context variables, grounded on
// original_source's cli.rs flag set, kept as a struct separate from the
// command wiring itself.
package runconfig

// Config is the parsed set of flags for a single engine invocation.
type Config struct {
	// TaskFile is the path to the YAML task list to execute.
	TaskFile string
	// Check runs every task in preview (no-op) mode.
	Check bool
	// Diff prints a unified diff of any content change a task would make.
	Diff bool
	// Verbose raises the log level to debug.
	Verbose bool
	// Args are the positional arguments following the task file, matched
	// against the script's docopt usage header to build the initial context.
	Args []string
}

// Default returns a Config with every flag at its zero-value default.
func Default() Config {
	return Config{}
}
