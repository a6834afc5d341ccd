// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestYumRepositoryCreatesNewRepo(t *testing.T) {
	dir := t.TempDir()

	res, _, err := YumRepository{}.Exec(execCtx(map[string]any{
		"name": "epel", "baseurl": "https://example.com/epel", "path": dir,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(filepath.Join(dir, "epel.repo"))
	want := "[epel]\nname=epel\nbaseurl=https://example.com/epel\nenabled=1\n"
	if got := string(data); got != want {
		t.Fatalf("unexpected file contents: %q, want %q", got, want)
	}
}

func TestYumRepositoryNoChangeWhenIdentical(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epel.repo")
	existing := "[epel]\nname=epel\nbaseurl=https://example.com/epel\nenabled=1\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	res, _, err := YumRepository{}.Exec(execCtx(map[string]any{
		"name": "epel", "baseurl": "https://example.com/epel", "path": dir,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
}

func TestYumRepositoryUpdatesExistingRepo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epel.repo")
	existing := "[epel]\nname=epel\nbaseurl=https://example.com/epel\nenabled=1\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	res, _, err := YumRepository{}.Exec(execCtx(map[string]any{
		"name": "epel", "baseurl": "https://mirror.example.com/epel", "path": dir,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(path)
	want := "[epel]\nname=epel\nbaseurl=https://mirror.example.com/epel\nenabled=1\n"
	if got := string(data); got != want {
		t.Fatalf("unexpected file contents: %q, want %q", got, want)
	}
}

func TestYumRepositoryRemovesRepo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "epel.repo")
	existing := "[epel]\nname=epel\nbaseurl=https://example.com/epel\nenabled=1\n"
	if err := os.WriteFile(path, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	res, _, err := YumRepository{}.Exec(execCtx(map[string]any{
		"name": "epel", "state": "absent", "path": dir,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(path)
	if got := string(data); got != "" {
		t.Fatalf("expected empty file, got %q", got)
	}
}

func TestYumRepositoryMissingBaseURLIsInvalid(t *testing.T) {
	dir := t.TempDir()

	_, _, err := YumRepository{}.Exec(execCtx(map[string]any{"name": "epel", "path": dir}))
	if err == nil {
		t.Fatalf("expected error when baseurl is missing for state=present")
	}
}
