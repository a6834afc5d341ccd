// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package modules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/vars"
)

// Parted manages a single partition on a block device (original_source's
// parted.rs) by shelling out to parted(8) in scripted mode.
type Parted struct{}

func init() { module.Register(Parted{}) }

func (Parted) Name() string              { return "parted" }
func (Parted) ForceStringOnParams() bool { return false }

type partedParams struct {
	Device    string `yaml:"device" validate:"required"`
	Number    int    `yaml:"number"`
	State     string `yaml:"state" validate:"omitempty,oneof=present absent info"`
	PartStart string `yaml:"part_start"`
	PartEnd   string `yaml:"part_end"`
	FSType    string `yaml:"fs_type"`
	Label     string `yaml:"label"`
}

func (Parted) Exec(ctx module.Context) (module.Result, vars.Vars, error) {
	var p partedParams
	if err := module.DecodeParams(ctx.Params, &p, true); err != nil {
		return module.Result{}, nil, err
	}
	if p.State == "" {
		p.State = "info"
	}
	if p.PartStart == "" {
		p.PartStart = "0%"
	}
	if p.PartEnd == "" {
		p.PartEnd = "100%"
	}

	existing, err := partedListPartitions(p.Device)
	if err != nil {
		return module.Result{}, nil, err
	}

	switch p.State {
	case "info":
		return module.Result{Output: p.Device, Extra: existing}, nil, nil

	case "absent":
		if p.Number == 0 || !existing[p.Number] {
			return module.Result{Output: p.Device}, nil, nil
		}
		if ctx.Diff != nil {
			ctx.Diff.Emit(fmt.Sprintf("%s partition %d present", p.Device, p.Number), fmt.Sprintf("%s partition %d absent", p.Device, p.Number))
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.Device}, nil, nil
		}
		result, runErr := RunCommand("parted", "-s", p.Device, "rm", strconv.Itoa(p.Number))
		if runErr != nil || result.RC != 0 {
			return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
		}
		return module.Result{Changed: true, Output: p.Device}, nil, nil

	default: // present
		if p.Number != 0 && existing[p.Number] {
			return module.Result{Output: p.Device}, nil, nil
		}
		if ctx.Diff != nil {
			ctx.Diff.Emit(p.Device+" unchanged", fmt.Sprintf("%s new partition %s-%s %s", p.Device, p.PartStart, p.PartEnd, p.FSType))
		}
		if ctx.CheckMode {
			return module.Result{Changed: true, Output: p.Device}, nil, nil
		}
		fsType := p.FSType
		if fsType == "" {
			fsType = "ext4"
		}
		result, runErr := RunCommand("parted", "-s", p.Device, "mkpart", "primary", fsType, p.PartStart, p.PartEnd)
		if runErr != nil || result.RC != 0 {
			return module.Result{}, nil, anverr.New(anverr.SubprocessFail, result.Stderr)
		}
		return module.Result{Changed: true, Output: p.Device}, nil, nil
	}
}

// partedListPartitions parses `parted -s -m <device> print` machine-readable
// output into the set of existing partition numbers.
func partedListPartitions(device string) (map[int]bool, error) {
	result, err := RunCommand("parted", "-s", "-m", device, "print")
	if err != nil {
		return nil, anverr.Wrap(anverr.SubprocessFail, err, "parted print")
	}
	partitions := map[int]bool{}
	for _, line := range strings.Split(result.Stdout, "\n") {
		fields := strings.Split(line, ":")
		if len(fields) == 0 {
			continue
		}
		if n, convErr := strconv.Atoi(strings.TrimSpace(fields[0])); convErr == nil {
			partitions[n] = true
		}
	}
	return partitions, nil
}
