// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"log/slog"
)

// Status is one of the four tags every task execution is logged under
// (§6 Logger channel).
type Status string

const (
	StatusOK       Status = "ok"
	StatusChanged  Status = "changed"
	StatusFailed   Status = "failed"
	StatusSkipping Status = "skipping"
)

// StatusLogger emits per-task status lines and the add/remove narration
// modules use to describe package-set transitions, on top of the shared
// slog.Logger built by New.
type StatusLogger struct {
	logger *slog.Logger
}

// NewStatusLogger wraps logger for task-status and set-transition
// narration.
func NewStatusLogger(logger *slog.Logger) *StatusLogger {
	return &StatusLogger{logger: logger}
}

// Task logs one task's outcome: module name, task name (may be empty), and
// status tag.
func (s *StatusLogger) Task(module, name string, status Status, output string) {
	attrs := []any{slog.String("module", module), slog.String("status", string(status))}
	if name != "" {
		attrs = append(attrs, slog.String("name", name))
	}
	if output != "" {
		attrs = append(attrs, slog.String("output", output))
	}
	level := slog.LevelInfo
	if status == StatusFailed {
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, "task", attrs...)
}

// Add narrates items being added to a reconciled set (e.g. packages about
// to be installed).
func (s *StatusLogger) Add(items []string) {
	if len(items) == 0 {
		return
	}
	s.logger.Info("add", slog.Any("items", items))
}

// Remove narrates items being removed from a reconciled set.
func (s *StatusLogger) Remove(items []string) {
	if len(items) == 0 {
		return
	}
	s.logger.Info("remove", slog.Any("items", items))
}
