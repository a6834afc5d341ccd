// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Command anvil is the engine's CLI front-end (§6): given a script file and
// its positional arguments, it derives the initial variable context from
// the script's docopt-style usage header, loads and validates the task
// list, and runs every task in order, honouring --check and --diff.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/docopt"
	"github.com/anvil-sh/anvil/internal/logging"
	"github.com/anvil-sh/anvil/internal/runconfig"
	"github.com/anvil-sh/anvil/internal/task"
	"github.com/anvil-sh/anvil/internal/taskfile"
)

func main() {
	cfg := runconfig.Default()

	rootCmd := &cobra.Command{
		Use:                "anvil <script> [args...]",
		Short:              "Run a declarative task script",
		Args:               cobra.MinimumNArgs(1),
		SilenceUsage:       true,
		SilenceErrors:      true,
		DisableFlagParsing: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.TaskFile = args[0]
			cfg.Args = args[1:]
			return run(cfg)
		},
	}
	rootCmd.Flags().BoolVar(&cfg.Check, "check", false, "run every task in check (preview) mode without mutating host state")
	rootCmd.Flags().BoolVar(&cfg.Diff, "diff", false, "print a unified diff of any content change a task would make")
	rootCmd.Flags().BoolVar(&cfg.Verbose, "verbose", false, "raise the log level to debug")

	if err := rootCmd.Execute(); err != nil {
		if anverr.Is(err, anverr.GracefulExit) {
			fmt.Println(err.Error())
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "anvil: "+err.Error())
		os.Exit(1)
	}
}

func run(cfg runconfig.Config) error {
	logger := logging.New(logging.ForRun(cfg.Verbose))
	status := logging.NewStatusLogger(logger)

	var diffSink logging.DiffSink = logging.NopDiffSink{}
	if cfg.Diff {
		diffSink = logging.NewUnifiedDiffSink(logger)
	}

	data, err := os.ReadFile(cfg.TaskFile)
	if err != nil {
		return anverr.Wrap(anverr.IOError, err, "reading "+cfg.TaskFile)
	}

	initialVars, err := docopt.Parse(string(data), cfg.Args)
	if err != nil {
		return err
	}

	tasks, err := taskfile.Parse(data)
	if err != nil {
		return err
	}

	engine := task.NewEngine(cfg.Check, diffSink, status)
	v := initialVars
	for _, t := range tasks {
		v, err = engine.Exec(t, v)
		if err != nil {
			return fmt.Errorf("task %q (%s): %w", t.Name, t.ModuleName, err)
		}
	}
	return nil
}
