// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package taskfile reads a task-list file from disk into a sequence of
// validated tasks, grounded directly on original_source's
// task.rs::read_file. A task file is a YAML sequence of task mappings; an
// optional leading `#!/bin/rash`-style shebang line needs no special
// handling since it is already a YAML comment and the decoder ignores it
// like any other `#`-prefixed line.
package taskfile

import (
	"os"
	"strconv"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/task"
	yaml "gopkg.in/yaml.v3"
)

// ReadFile loads and validates every task in path, in file order.
func ReadFile(path string) (task.Tasks, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, anverr.Wrap(anverr.InvalidData, err, "reading task file "+path)
	}
	return Parse(data)
}

// Parse validates every task in a YAML sequence of task mappings.
func Parse(data []byte) (task.Tasks, error) {
	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, anverr.Wrap(anverr.InvalidData, err, "parsing task file")
	}
	if len(docs) == 0 {
		return nil, anverr.New(anverr.InvalidData, "task file has no tasks")
	}

	tasks := make(task.Tasks, 0, len(docs))
	for i, raw := range docs {
		t, err := task.New(raw)
		if err != nil {
			return nil, anverr.Wrap(anverr.InvalidData, err, "invalid task at index "+strconv.Itoa(i))
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
