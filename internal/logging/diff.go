// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"log/slog"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffSink is the diff channel (§6): a sink accepting a (before, after)
// pair before a module mutates host state. The engine is agnostic to sink
// format; the default implementation below renders a unified-style diff.
type DiffSink interface {
	Emit(before, after string)
}

// NopDiffSink discards every diff; used when --diff was not passed.
type NopDiffSink struct{}

func (NopDiffSink) Emit(string, string) {}

// UnifiedDiffSink renders before/after pairs as a line-level diff using
// diffmatchpatch and writes them through the shared logger. This is the
// default sink wired when --diff is set.
type UnifiedDiffSink struct {
	logger *slog.Logger
	dmp    *diffmatchpatch.DiffMatchPatch
}

// NewUnifiedDiffSink builds a DiffSink that logs through logger.
func NewUnifiedDiffSink(logger *slog.Logger) *UnifiedDiffSink {
	return &UnifiedDiffSink{logger: logger, dmp: diffmatchpatch.New()}
}

func (u *UnifiedDiffSink) Emit(before, after string) {
	a, b, lines := u.dmp.DiffLinesToChars(before, after)
	diffs := u.dmp.DiffMain(a, b, false)
	diffs = u.dmp.DiffCharsToLines(diffs, lines)

	var rendered string
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			rendered += prefixLines("+", d.Text)
		case diffmatchpatch.DiffDelete:
			rendered += prefixLines("-", d.Text)
		case diffmatchpatch.DiffEqual:
			rendered += prefixLines(" ", d.Text)
		}
	}
	u.logger.Info("diff", slog.String("patch", rendered))
}

func prefixLines(prefix, text string) string {
	out := ""
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			out += fmt.Sprintf("%s%s\n", prefix, text[start:i])
			start = i + 1
		}
	}
	if start < len(text) {
		out += fmt.Sprintf("%s%s\n", prefix, text[start:])
	}
	return out
}
