// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLogrotateCreatesDropIn(t *testing.T) {
	dir := t.TempDir()

	res, _, err := Logrotate{}.Exec(execCtx(map[string]any{
		"path": "/var/log/app.log", "drop_in_dir": dir, "rotate": 7, "compress": true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, err := os.ReadFile(filepath.Join(dir, "APP_LOG"))
	if err != nil {
		t.Fatalf("expected drop-in file: %v", err)
	}
	want := "/var/log/app.log {\n    daily\n    rotate 7\n    compress\n}\n"
	if got := string(data); got != want {
		t.Fatalf("unexpected contents: %q, want %q", got, want)
	}
}

func TestLogrotateNoChangeWhenIdentical(t *testing.T) {
	dir := t.TempDir()
	params := map[string]any{"path": "/var/log/app.log", "drop_in_dir": dir}

	if _, _, err := Logrotate{}.Exec(execCtx(params)); err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}
	res, _, err := Logrotate{}.Exec(execCtx(params))
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
}

func TestLogrotateUpdatesExistingDropIn(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Logrotate{}.Exec(execCtx(map[string]any{"path": "/var/log/app.log", "drop_in_dir": dir})); err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}

	res, _, err := Logrotate{}.Exec(execCtx(map[string]any{
		"path": "/var/log/app.log", "drop_in_dir": dir, "frequency": "weekly",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
}

func TestLogrotateRemovesDropIn(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Logrotate{}.Exec(execCtx(map[string]any{"path": "/var/log/app.log", "drop_in_dir": dir})); err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}

	res, _, err := Logrotate{}.Exec(execCtx(map[string]any{
		"path": "/var/log/app.log", "drop_in_dir": dir, "state": "absent",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	if _, err := os.Stat(filepath.Join(dir, "APP_LOG")); err == nil {
		t.Fatalf("expected drop-in file to be removed")
	}
}

func TestLogrotateMissingPathIsInvalid(t *testing.T) {
	dir := t.TempDir()
	_, _, err := Logrotate{}.Exec(execCtx(map[string]any{"drop_in_dir": dir}))
	if err == nil {
		t.Fatalf("expected error when path is missing")
	}
}
