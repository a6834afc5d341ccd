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

// YumRepository manages a whole `.repo` section as one unit (original_source's
// yum_repository.rs): unlike ini_file's single-option reconciliation, the
// repository's entire [name] block is replaced or removed atomically.
type YumRepository struct{}

func init() { module.Register(YumRepository{}) }

func (YumRepository) Name() string              { return "yum_repository" }
func (YumRepository) ForceStringOnParams() bool { return true }

type yumRepositoryParams struct {
	Name        string `yaml:"name" validate:"required"`
	BaseURL     string `yaml:"baseurl"`
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
	GPGCheck    *bool  `yaml:"gpgcheck"`
	GPGKey      string `yaml:"gpgkey"`
	State       string `yaml:"state" validate:"omitempty,oneof=present absent"`
	File        string `yaml:"file"`
	// Path overrides the repo directory, defaulting to /etc/yum.repos.d. A
	// testing seam: the real directory is always root-owned.
	Path string `yaml:"path"`
}

func (YumRepository) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p yumRepositoryParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.State == "present" && p.BaseURL == "" {
		return module.Result{}, nil, anverr.New(anverr.InvalidData, "baseurl is required when state=present")
	}
	if p.File == "" {
		p.File = p.Name
	}
	if p.Path == "" {
		p.Path = "/etc/yum.repos.d"
	}
	path := filepath.Join(p.Path, p.File+".repo")

	before, err := readLines(path)
	if err != nil {
		return module.Result{}, nil, err
	}

	header := fmt.Sprintf("[%s]", p.Name)
	start, end, missing := findIniSection(before, p.Name)

	var block []string
	if p.State == "present" {
		enabled := true
		if p.Enabled != nil {
			enabled = *p.Enabled
		}
		block = []string{
			fmt.Sprintf("name=%s", valueOr(p.Description, p.Name)),
			fmt.Sprintf("baseurl=%s", p.BaseURL),
			fmt.Sprintf("enabled=%s", boolToOneZero(enabled)),
		}
		if p.GPGCheck != nil {
			block = append(block, fmt.Sprintf("gpgcheck=%s", boolToOneZero(*p.GPGCheck)))
		}
		if p.GPGKey != "" {
			block = append(block, fmt.Sprintf("gpgkey=%s", p.GPGKey))
		}
	}

	if p.State == "absent" && missing {
		return module.Result{Output: p.Name}, nil, nil
	}
	if p.State == "present" && !missing && linesEqual(before[start:end], block) {
		return module.Result{Output: p.Name}, nil, nil
	}

	var after []string
	switch {
	case p.State == "absent":
		after = append(append([]string{}, before[:start-1]...), before[end:]...)
	case missing:
		after = append(append([]string{}, before...), header)
		after = append(after, block...)
	default:
		after = append([]string{}, before[:start]...)
		after = append(after, block...)
		after = append(after, before[end:]...)
	}

	if ctx.Diff != nil {
		ctx.Diff.Emit(strings.Join(before, "\n"), strings.Join(after, "\n"))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Name}, nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating "+filepath.Dir(path))
	}
	if err := writeLines(path, after); err != nil {
		return module.Result{}, nil, err
	}
	return module.Result{Changed: true, Output: p.Name}, nil, nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func boolToOneZero(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
