// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"fmt"
	"os"
	"strconv"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// File manages file/directory existence and permissions (original_source's
// file.rs): state absent/directory/file/touch, each idempotent against the
// current filesystem state before mutating.
//
// Parameters:
//
//	path: string, required — absolute path to the file being managed.
//	mode: string, optional — octal permission string, e.g. "0644".
//	state: string, optional, one of absent|directory|file|touch (default file).
type File struct{}

func init() { module.Register(File{}) }

func (File) Name() string              { return "file" }
func (File) ForceStringOnParams() bool { return false }

type fileParams struct {
	Path  string `yaml:"path" validate:"required"`
	Mode  string `yaml:"mode"`
	State string `yaml:"state" validate:"omitempty,oneof=absent directory file touch"`
}

func (File) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p fileParams
	if err := module.DecodeParams(ctx.Params, &p, false); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "file"
	}

	var octalMode int64 = -1
	if p.Mode != "" {
		m, err := strconv.ParseInt(p.Mode, 8, 64)
		if err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.InvalidData, err, "invalid mode "+p.Mode)
		}
		octalMode = m
	}

	switch p.State {
	case "absent":
		return defineAbsent(ctx, p.Path)
	case "directory":
		return defineDirectory(ctx, p.Path, octalMode)
	case "touch":
		return defineTouch(ctx, p.Path, octalMode)
	default:
		return defineFile(ctx, p.Path, octalMode)
	}
}

func defineFile(ctx module.Context, path string, octalMode int64) (module.Result, vars.Vars, error) {
	info, err := os.Stat(path)
	if err != nil {
		return module.Result{}, nil, anverr.New(anverr.NotFound,
			fmt.Sprintf("file %s is absent, cannot continue", path))
	}
	if octalMode < 0 {
		return module.Result{Output: path}, nil, nil
	}
	return applyPermissionsIfNecessary(ctx, path, info, octalMode)
}

func defineAbsent(ctx module.Context, path string) (module.Result, vars.Vars, error) {
	info, err := os.Stat(path)
	if err != nil {
		return module.Result{Output: path}, nil, nil
	}
	if ctx.Diff != nil {
		ctx.Diff.Emit(summarizePath(path, info), "(removed)")
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: path}, nil, nil
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "removing "+path)
		}
	} else if info.Mode().IsRegular() {
		if err := os.Remove(path); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "removing "+path)
		}
	} else {
		return module.Result{}, nil, anverr.New(anverr.InvalidData,
			fmt.Sprintf("file %s is unknown type and cannot be removed", path))
	}
	return module.Result{Changed: true, Output: path}, nil, nil
}

func defineDirectory(ctx module.Context, path string, octalMode int64) (module.Result, vars.Vars, error) {
	info, err := os.Stat(path)
	if err == nil {
		if octalMode < 0 {
			return module.Result{Output: path}, nil, nil
		}
		return applyPermissionsIfNecessary(ctx, path, info, octalMode)
	}

	if ctx.Diff != nil {
		ctx.Diff.Emit("(absent)", fmt.Sprintf("directory %s mode=%s", path, modeString(octalMode)))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: path}, nil, nil
	}

	mode := os.FileMode(0o755)
	if octalMode >= 0 {
		mode = os.FileMode(octalMode)
	}
	if err := os.MkdirAll(path, mode); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating directory "+path)
	}
	if octalMode >= 0 {
		if err := os.Chmod(path, os.FileMode(octalMode)); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "chmod "+path)
		}
	}
	return module.Result{Changed: true, Output: path}, nil, nil
}

func defineTouch(ctx module.Context, path string, octalMode int64) (module.Result, vars.Vars, error) {
	info, err := os.Stat(path)
	if err == nil {
		if octalMode < 0 {
			return module.Result{Output: path}, nil, nil
		}
		return applyPermissionsIfNecessary(ctx, path, info, octalMode)
	}

	if ctx.Diff != nil {
		ctx.Diff.Emit("(absent)", fmt.Sprintf("file %s mode=%s", path, modeString(octalMode)))
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: path}, nil, nil
	}

	mode := os.FileMode(0o644)
	if octalMode >= 0 {
		mode = os.FileMode(octalMode)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, mode)
	if err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating "+path)
	}
	f.Close()
	if octalMode >= 0 {
		if err := os.Chmod(path, os.FileMode(octalMode)); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "chmod "+path)
		}
	}
	return module.Result{Changed: true, Output: path}, nil, nil
}

func applyPermissionsIfNecessary(ctx module.Context, path string, info os.FileInfo, octalMode int64) (module.Result, vars.Vars, error) {
	current := int64(info.Mode().Perm())
	if current == octalMode {
		return module.Result{Output: path}, nil, nil
	}
	if ctx.Diff != nil {
		ctx.Diff.Emit(
			fmt.Sprintf("%s mode=%s", path, modeString(current)),
			fmt.Sprintf("%s mode=%s", path, modeString(octalMode)),
		)
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: path}, nil, nil
	}
	if err := os.Chmod(path, os.FileMode(octalMode)); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "chmod "+path)
	}
	return module.Result{Changed: true, Output: path}, nil, nil
}

func modeString(mode int64) string {
	if mode < 0 {
		return "(default)"
	}
	return strconv.FormatInt(mode, 8)
}

func summarizePath(path string, info os.FileInfo) string {
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return fmt.Sprintf("%s %s mode=%s", kind, path, modeString(int64(info.Mode().Perm())))
}
