// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// GetURL downloads a remote file to a local destination (original_source's
// get_url.rs): the canonical external download/validate pattern — fetch to
// a temp name, verify checksum if given, then atomically rename over dest.
type GetURL struct{}

func init() { module.Register(GetURL{}) }

func (GetURL) Name() string              { return "get_url" }
func (GetURL) ForceStringOnParams() bool { return false }

type getURLParams struct {
	URL      string            `yaml:"url" validate:"required"`
	Dest     string            `yaml:"dest" validate:"required"`
	Backup   bool              `yaml:"backup"`
	Checksum string            `yaml:"checksum"`
	Force    bool              `yaml:"force"`
	Headers  map[string]string `yaml:"headers"`
	Mode     string            `yaml:"mode"`
	Timeout  int               `yaml:"timeout"`
}

func (GetURL) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p getURLParams
	if err := module.DecodeParams(ctx.Params, &p, false); err != nil {
		return module.Result{}, nil, err
	}
	if p.Timeout == 0 {
		p.Timeout = 10
	}

	if !p.Force {
		if _, err := os.Stat(p.Dest); err == nil {
			return module.Result{Output: p.Dest}, nil, nil
		}
	}

	if ctx.Diff != nil {
		ctx.Diff.Emit("(absent)", p.URL+" -> "+p.Dest)
	}
	if ctx.CheckMode {
		return module.Result{Changed: true, Output: p.Dest}, nil, nil
	}

	req, err := http.NewRequest(http.MethodGet, p.URL, nil)
	if err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.InvalidData, err, "building request for "+p.URL)
	}
	for k, v := range p.Headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: time.Duration(p.Timeout) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "fetching "+p.URL)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return module.Result{}, nil, anverr.New(anverr.IOError, "fetching "+p.URL+" returned status "+strconv.Itoa(resp.StatusCode))
	}

	tmpPath := filepath.Join(filepath.Dir(p.Dest), "."+filepath.Base(p.Dest)+"."+uuid.NewString()+".tmp")
	if err := os.MkdirAll(filepath.Dir(p.Dest), 0o755); err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating "+filepath.Dir(p.Dest))
	}

	sum := sha256.New()
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "creating "+tmpPath)
	}
	if _, err := io.Copy(io.MultiWriter(out, sum), resp.Body); err != nil {
		out.Close()
		os.Remove(tmpPath)
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "writing "+tmpPath)
	}
	out.Close()

	digest := hex.EncodeToString(sum.Sum(nil))
	if p.Checksum != "" && !checksumMatches(p.Checksum, digest) {
		os.Remove(tmpPath)
		return module.Result{}, nil, anverr.New(anverr.InvalidData, "checksum mismatch for "+p.URL)
	}

	if p.Backup {
		if _, err := os.Stat(p.Dest); err == nil {
			_ = os.Rename(p.Dest, p.Dest+"."+time.Now().UTC().Format("20060102150405")+".bak")
		}
	}
	if err := os.Rename(tmpPath, p.Dest); err != nil {
		os.Remove(tmpPath)
		return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "renaming "+tmpPath+" to "+p.Dest)
	}
	if p.Mode != "" {
		mode, parseErr := strconv.ParseInt(p.Mode, 8, 64)
		if parseErr != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.InvalidData, parseErr, "invalid mode "+p.Mode)
		}
		if err := os.Chmod(p.Dest, os.FileMode(mode)); err != nil {
			return module.Result{}, nil, anverr.Wrap(anverr.IOError, err, "chmod "+p.Dest)
		}
	}
	return module.Result{Changed: true, Output: p.Dest, Extra: map[string]string{"checksum": digest}}, nil, nil
}

func checksumMatches(expected, actual string) bool {
	// expected may be "sha256:<hex>" or a bare hex digest.
	for i := len(expected) - 1; i >= 0; i-- {
		if expected[i] == ':' {
			return expected[i+1:] == actual
		}
	}
	return expected == actual
}
