// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// Logrotate manages a whole logrotate drop-in file under /etc/logrotate.d
// (original_source's logrotate.rs): one generated stanza per managed path,
// replaced wholesale rather than reconciled line by line.
type Logrotate struct{}

func init() { module.Register(Logrotate{}) }

func (Logrotate) Name() string              { return "logrotate" }
func (Logrotate) ForceStringOnParams() bool { return false }

type logrotateParams struct {
	Path      string `yaml:"path" validate:"required"`
	State     string `yaml:"state" validate:"omitempty,oneof=present absent"`
	Frequency string `yaml:"frequency" validate:"omitempty,oneof=daily weekly monthly yearly"`
	Rotate    int    `yaml:"rotate"`
	Compress  bool   `yaml:"compress"`
	Missingok bool   `yaml:"missingok"`
	// DropInDir overrides the directory the stanza is written under,
	// defaulting to /etc/logrotate.d. A testing seam: the real directory is
	// always root-owned.
	DropInDir string `yaml:"drop_in_dir"`
}

func (Logrotate) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p logrotateParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.Frequency == "" {
		p.Frequency = "daily"
	}
	if p.Rotate == 0 {
		p.Rotate = 4
	}

	if p.DropInDir == "" {
		p.DropInDir = "/etc/logrotate.d"
	}
	dropIn := filepath.Join(p.DropInDir, sanitizeEnvName(filepath.Base(p.Path)))

	before, _ := os.ReadFile(dropIn)
	var after string
	if p.State == "present" {
		after = renderLogrotateStanza(p)
	}

	if string(before) == after {
		return module.Result{Output: p.Path}, nil, nil
	}
	if ctx.Diff != nil {
		ctx.Diff.Emit(string(before), after)
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Path}, nil, nil
	}

	if p.State == "absent" {
		if err := os.Remove(dropIn); err != nil && !os.IsNotExist(err) {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "removing "+dropIn)
		}
		return module.Result{Changed: true, Output: p.Path}, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(dropIn), 0o755); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating "+filepath.Dir(dropIn))
	}
	if err := os.WriteFile(dropIn, []byte(after), 0o644); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "writing "+dropIn)
	}
	return module.Result{Changed: true, Output: p.Path}, nil, nil
}

func renderLogrotateStanza(p logrotateParams) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s {\n", p.Path)
	fmt.Fprintf(&b, "    %s\n", p.Frequency)
	fmt.Fprintf(&b, "    rotate %d\n", p.Rotate)
	if p.Compress {
		b.WriteString("    compress\n")
	}
	if p.Missingok {
		b.WriteString("    missingok\n")
	}
	b.WriteString("}\n")
	return b.String()
}
