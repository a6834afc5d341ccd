// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"os/user"
	"path/filepath"
	"testing"
)

func currentUsername(t *testing.T) string {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Skipf("no resolvable current user: %v", err)
	}
	return u.Username
}

func TestAuthorizedKeyAddsNewKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	username := currentUsername(t)

	res, _, err := AuthorizedKey{}.Exec(execCtx(map[string]any{
		"user": username, "path": path, "key": []any{"ssh-ed25519 AAAA... a@b"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(path)
	if got := string(data); got != "ssh-ed25519 AAAA... a@b\n" {
		t.Fatalf("unexpected file contents: %q", got)
	}
}

func TestAuthorizedKeyNoChangeWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	username := currentUsername(t)
	if err := os.WriteFile(path, []byte("ssh-ed25519 AAAA... a@b\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, _, err := AuthorizedKey{}.Exec(execCtx(map[string]any{
		"user": username, "path": path, "key": []any{"ssh-ed25519 AAAA... a@b"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
}

func TestAuthorizedKeyRemovesKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	username := currentUsername(t)
	if err := os.WriteFile(path, []byte("ssh-ed25519 AAAA... a@b\nssh-ed25519 BBBB... c@d\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, _, err := AuthorizedKey{}.Exec(execCtx(map[string]any{
		"user": username, "path": path, "key": []any{"ssh-ed25519 AAAA... a@b"}, "state": "absent",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(path)
	if got := string(data); got != "ssh-ed25519 BBBB... c@d\n" {
		t.Fatalf("unexpected file contents: %q", got)
	}
}

func TestAuthorizedKeyExclusiveReplacesSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	username := currentUsername(t)
	if err := os.WriteFile(path, []byte("ssh-ed25519 OLD... a@b\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	res, _, err := AuthorizedKey{}.Exec(execCtx(map[string]any{
		"user": username, "path": path, "key": []any{"ssh-ed25519 NEW... a@b"}, "exclusive": true,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(path)
	if got := string(data); got != "ssh-ed25519 NEW... a@b\n" {
		t.Fatalf("unexpected file contents: %q", got)
	}
}

func TestAuthorizedKeyUnknownUserIsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")

	_, _, err := AuthorizedKey{}.Exec(execCtx(map[string]any{
		"user": "definitely-not-a-real-user", "path": path, "key": []any{"ssh-ed25519 AAAA... a@b"},
	}))
	if err == nil {
		t.Fatalf("expected error for unresolvable user")
	}
}
