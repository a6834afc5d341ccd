// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// AuthorizedKey reconciles the set of SSH public keys present in a user's
// authorized_keys file (original_source's authorized_key.rs): set
// reconciliation scoped to file lines rather than a subprocess inventory.
type AuthorizedKey struct{}

func init() { module.Register(AuthorizedKey{}) }

func (AuthorizedKey) Name() string              { return "authorized_key" }
func (AuthorizedKey) ForceStringOnParams() bool { return false }

type authorizedKeyParams struct {
	User      string   `yaml:"user" validate:"required"`
	Key       []string `yaml:"key"`
	State     string   `yaml:"state" validate:"omitempty,oneof=present absent"`
	Path      string   `yaml:"path"`
	Exclusive bool     `yaml:"exclusive"`
}

func (AuthorizedKey) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p authorizedKeyParams
	if err := module.DecodeParams(ctx.Params, &p, false); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}

	path := p.Path
	if path == "" {
		u, err := user.Lookup(p.User)
		if err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.NotFound, err, "looking up user "+p.User)
		}
		path = filepath.Join(u.HomeDir, ".ssh", "authorized_keys")
	}

	before, err := readLines(path)
	if err != nil {
		return module.Result{}, nil, err
	}
	desired := normalizeKeySet(p.Key)

	var after []string
	switch {
	case p.Exclusive && p.State == "present":
		after = desired
	case p.State == "present":
		existing := map[string]bool{}
		for _, line := range before {
			existing[strings.TrimSpace(line)] = true
		}
		after = append([]string{}, before...)
		for _, key := range desired {
			if !existing[key] {
				after = append(after, key)
			}
		}
	default: // absent
		remove := map[string]bool{}
		for _, key := range desired {
			remove[key] = true
		}
		for _, line := range before {
			if !remove[strings.TrimSpace(line)] {
				after = append(after, line)
			}
		}
	}

	if linesEqual(before, after) {
		return module.Result{Output: p.User}, nil, nil
	}
	if ctx.Diff != nil {
		ctx.Diff.Emit(strings.Join(before, "\n"), strings.Join(after, "\n"))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.User}, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating "+filepath.Dir(path))
	}
	if err := writeLines(path, after); err != nil {
		return module.Result{}, nil, err
	}
	if err := chownToUser(path, p.User); err != nil {
		return module.Result{}, nil, err
	}
	return module.Result{Changed: true, Output: p.User}, nil, nil
}

func normalizeKeySet(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.TrimSpace(k)
	}
	return out
}

func chownToUser(path, username string) error {
	u, err := user.Lookup(username)
	if err != nil {
		return anverr.Wrap(anverr.NotFound, err, "looking up user "+username)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return anverr.Wrap(anverr.InvalidData, err, fmt.Sprintf("parsing uid for %s", username))
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return anverr.Wrap(anverr.InvalidData, err, fmt.Sprintf("parsing gid for %s", username))
	}
	if err := os.Chown(path, uid, gid); err != nil {
		return anverr.Wrap(anverr.IOError, err, "chown "+path)
	}
	return nil
}
