// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeGpg writes a fake gpg(1) binary: --list-keys reports presence based on
// $GPG_PRESENT, echoing back whatever key id it was asked about; every
// invocation is logged to $GPG_LOG for assertions.
func fakeGpg(t *testing.T, dir string, present bool) string {
	t.Helper()
	presentFlag := "0"
	if present {
		presentFlag = "1"
	}
	script := `
echo "$@" >> "$GPG_LOG"
for a; do last="$a"; done
case "$*" in
  *--list-keys*)
    if [ "$GPG_PRESENT" = "1" ]; then echo "$last"; exit 0; else exit 1; fi
    ;;
  *) exit 0;;
esac
`
	t.Setenv("GPG_PRESENT", presentFlag)
	t.Setenv("GPG_LOG", filepath.Join(dir, "gpg.log"))
	return writeFakeScript(t, dir, "gpg", script)
}

func TestGPGKeyImportsFromKeyfile(t *testing.T) {
	dir := t.TempDir()
	gpg := fakeGpg(t, dir, false)

	res, _, err := GPGKey{}.Exec(execCtx(map[string]any{
		"key_id": "ABCD1234", "keyfile": "/tmp/key.asc", "executable": gpg,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(filepath.Join(dir, "gpg.log"))
	if !strings.Contains(string(data), "--import") {
		t.Fatalf("expected an --import invocation, log was: %q", data)
	}
}

func TestGPGKeyNoChangeWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	gpg := fakeGpg(t, dir, true)

	res, _, err := GPGKey{}.Exec(execCtx(map[string]any{
		"key_id": "ABCD1234", "keyfile": "/tmp/key.asc", "executable": gpg,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
}

func TestGPGKeyRemovesExistingKey(t *testing.T) {
	dir := t.TempDir()
	gpg := fakeGpg(t, dir, true)

	res, _, err := GPGKey{}.Exec(execCtx(map[string]any{
		"key_id": "ABCD1234", "state": "absent", "executable": gpg,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected change")
	}
	data, _ := os.ReadFile(filepath.Join(dir, "gpg.log"))
	if !strings.Contains(string(data), "--delete-key") {
		t.Fatalf("expected a --delete-key invocation, log was: %q", data)
	}
}

func TestGPGKeyAbsentNoChangeWhenMissing(t *testing.T) {
	dir := t.TempDir()
	gpg := fakeGpg(t, dir, false)

	res, _, err := GPGKey{}.Exec(execCtx(map[string]any{
		"key_id": "ABCD1234", "state": "absent", "executable": gpg,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Fatalf("expected no change")
	}
}

func TestGPGKeyRequiresKeyfileOrKeyserver(t *testing.T) {
	dir := t.TempDir()
	gpg := fakeGpg(t, dir, false)

	_, _, err := GPGKey{}.Exec(execCtx(map[string]any{"key_id": "ABCD1234", "executable": gpg}))
	if err == nil {
		t.Fatalf("expected error when neither keyfile nor keyserver is set")
	}
}
