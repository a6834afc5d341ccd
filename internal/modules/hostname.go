// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// Hostname manages the content of /etc/hostname (original_source's
// hostname.rs): the simplest content-file case, a single whole-file value
// with no line-level reconciliation.
type Hostname struct{}

func init() { module.Register(Hostname{}) }

func (Hostname) Name() string              { return "hostname" }
func (Hostname) ForceStringOnParams() bool { return false }

type hostnameParams struct {
	Name string `yaml:"name" validate:"required"`
	// Path overrides the target file, defaulting to /etc/hostname. A
	// testing seam: the real path is always root-owned, so tests exercise
	// this against a temp file instead.
	Path string `yaml:"path"`
}

const hostnameFile = "/etc/hostname"

func (Hostname) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p hostnameParams
	if err := module.DecodeParams(ctx.Params, &p, false); err != nil {
		return module.Result{}, nil, err
	}
	if p.Path == "" {
		p.Path = hostnameFile
	}

	raw, err := os.ReadFile(p.Path)
	current := ""
	if err == nil {
		current = strings.TrimSpace(string(raw))
	} else if !os.IsNotExist(err) {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "reading "+p.Path)
	}

	if current == p.Name {
		return module.Result{Output: p.Name}, nil, nil
	}
	if ctx.Diff != nil {
		ctx.Diff.Emit(current, p.Name)
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Name}, nil, nil
	}
	if err := os.WriteFile(p.Path, []byte(p.Name+"\n"), 0o644); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "writing "+p.Path)
	}
	return module.Result{Changed: true, Output: p.Name}, nil, nil
}
