// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/logging"
	"github.com/anvil-sh/anvil/internal/module"
)

func execCtx(params any) module.Context {
	return module.Context{Params: params, Diff: logging.NopDiffSink{}}
}

func TestFileDefineFileNoChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "existing")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, _, err := File{}.Exec(execCtx(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
}

func TestFileDefineFileNoExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing")

	_, _, err := File{}.Exec(execCtx(map[string]any{"path": path}))
	if anverr.KindOf(err) != anverr.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestFileDefineFileModifyPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "perm")
	if err := os.WriteFile(path, []byte("x"), 0o400); err != nil {
		t.Fatal(err)
	}

	res, _, err := File{}.Exec(execCtx(map[string]any{"path": path, "mode": "0604"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o604 {
		t.Fatalf("expected mode 0604, got %v", info.Mode().Perm())
	}
}

func TestFileDefineTouchCreated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "touched")

	res, _, err := File{}.Exec(execCtx(map[string]any{"path": path, "state": "touch"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestFileDefineDirectoryCreatedWithSubdirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "c")

	res, _, err := File{}.Exec(execCtx(map[string]any{
		"path": path, "state": "directory", "mode": "0750",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatalf("expected directory")
	}
	if info.Mode().Perm() != 0o750 {
		t.Fatalf("expected mode 0750, got %v", info.Mode().Perm())
	}
}

func TestFileDefineDirectoryNoMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain")

	res, _, err := File{}.Exec(execCtx(map[string]any{"path": path, "state": "directory"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory to be created")
	}
}

func TestFileDefineAbsentRemovesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, _, err := File{}.Exec(execCtx(map[string]any{"path": path, "state": "absent"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file to be removed")
	}
}

func TestFileDefineAbsentRemovesDirectoryAndSubdirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tree")
	if err := os.MkdirAll(filepath.Join(path, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "nested", "leaf"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, _, err := File{}.Exec(execCtx(map[string]any{"path": path, "state": "absent"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected tree to be removed")
	}
}

func TestFileDefineAbsentNoChangeWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-existed")

	res, _, err := File{}.Exec(execCtx(map[string]any{"path": path, "state": "absent"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
}

func TestFileInvalidMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad")

	_, _, err := File{}.Exec(execCtx(map[string]any{"path": path, "mode": "not-octal"}))
	if anverr.KindOf(err) != anverr.InvalidData {
		t.Fatalf("expected InvalidData, got %v", err)
	}
}

func TestFileMissingPath(t *testing.T) {
	_, _, err := File{}.Exec(execCtx(map[string]any{"state": "touch"}))
	if anverr.KindOf(err) != anverr.InvalidData {
		t.Fatalf("expected InvalidData for missing path, got %v", err)
	}
}

func TestFileCheckModeDoesNotMutate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preview")

	ctx := execCtx(map[string]any{"path": path, "state": "touch"})
	ctx.CheckMode = true

	res, _, err := File{}.Exec(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change to be predicted")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("check mode must not create the file")
	}
}
