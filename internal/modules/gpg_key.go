// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// GPGKey imports or removes a GPG key from a keyring (original_source's
// gpg_key.rs): the other external download/validate representative — the
// "download" step is a keyserver fetch, "validate" is letting gpg itself
// parse and fingerprint-check the imported key.
type GPGKey struct{}

func init() { module.Register(GPGKey{}) }

func (GPGKey) Name() string              { return "gpg_key" }
func (GPGKey) ForceStringOnParams() bool { return true }

type gpgKeyParams struct {
	KeyID      string `yaml:"key_id" validate:"required"`
	State      string `yaml:"state" validate:"omitempty,oneof=present absent"`
	Keyserver  string `yaml:"keyserver"`
	Keyfile    string `yaml:"keyfile"`
	Executable string `yaml:"executable"`
	GPGHome    string `yaml:"gpg_home"`
}

func (GPGKey) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p gpgKeyParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "present"
	}
	if p.Executable == "" {
		p.Executable = "gpg"
	}
	gpgHome := p.GPGHome
	if gpgHome == "" {
		gpgHome = filepath.Join(os.TempDir(), "gpg-"+uuid.NewString())
		if err := os.MkdirAll(gpgHome, 0o700); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating ephemeral gpg home")
		}
		defer os.RemoveAll(gpgHome)
	}

	present, err := gpgKeyPresent(p, gpgHome)
	if err != nil {
		return module.Result{}, nil, err
	}

	switch p.State {
	case "absent":
		if !present {
			return module.Result{Output: p.KeyID}, nil, nil
		}
		if ctx.Diff != nil {
			ctx.Diff.Emit(p.KeyID+" present", p.KeyID+" absent")
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.KeyID}, nil, nil
		}
		result, runErr := RunCommand(p.Executable, "--homedir", gpgHome, "--batch", "--yes", "--delete-key", p.KeyID)
		if runErr != nil || result.RC != 0 {
			return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
		}
		return module.Result{Changed: true, Output: p.KeyID}, nil, nil

	default: // present
		if present {
			return module.Result{Output: p.KeyID}, nil, nil
		}
		if ctx.Diff != nil {
			ctx.Diff.Emit(p.KeyID+" absent", p.KeyID+" present")
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.KeyID}, nil, nil
		}
		var args []string
		switch {
		case p.Keyfile != "":
			args = []string{"--homedir", gpgHome, "--batch", "--import", p.Keyfile}
		case p.Keyserver != "":
			args = []string{"--homedir", gpgHome, "--batch", "--keyserver", p.Keyserver, "--recv-keys", p.KeyID}
		default:
			return module.Result{}, nil, anverr.New(anverr.InvalidData, "one of keyfile or keyserver is required when state=present")
		}
		result, runErr := RunCommand(p.Executable, args...)
		if runErr != nil || result.RC != 0 {
			return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
		}
		return module.Result{Changed: true, Output: p.KeyID}, nil, nil
	}
}

func gpgKeyPresent(p gpgKeyParams, gpgHome string) (bool, error) {
	result, err := RunCommand(p.Executable, "--homedir", gpgHome, "--batch", "--list-keys", p.KeyID)
	if err != nil {
		return false, anverr.Wrap(anverr.SubprocessFail, err, "listing gpg keys")
	}
	return result.RC == 0 && strings.Contains(result.Stdout, p.KeyID), nil
}
