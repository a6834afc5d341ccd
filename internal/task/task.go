// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package task implements the engine's task model (§4): a single
// declarative step binding one catalogue module to rendered parameters,
// an optional name/guard/loop/register, and the logic to run it against a
// variable context. original_source's task.rs validates a task through a
// generic TaskNew -> TaskValid -> Task state machine; this package
// collapses that into the single function New (there is no
// Rust-generics analogue here, so the three stages are plain checks
// inside one function instead of three types).
package task

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/anvil-sh/anvil/internal/logging"
	"github.com/anvil-sh/anvil/internal/module"
	"github.com/anvil-sh/anvil/internal/render"
	"github.com/anvil-sh/anvil/internal/vars"
)

// fieldNames is the set of reserved top-level task attributes, checked
// against every task mapping's keys alongside the module catalogue (§4.4).
// ignore_errors/changed_when/failed_when are supplemented from
// original_source beyond the distilled task model's worked examples.
var fieldNames = map[string]bool{
	"name":          true,
	"when":          true,
	"register":      true,
	"loop":          true,
	"ignore_errors": true,
	"changed_when":  true,
	"failed_when":   true,
}

// Tasks is an ordered list of validated tasks, the in-memory form of a
// task-list file (§4.6/§4.7).
type Tasks []Task

// Task is one parsed, validated step: a module name, its raw (unrendered)
// parameters, and the optional attributes controlling whether/how many
// times/what-result-binding it executes.
type Task struct {
	ModuleName   string
	Params       any
	Name         string
	When         string
	Register     string
	Loop         any
	HasLoop      bool
	IgnoreErrors bool
	ChangedWhen  string
	FailedWhen   string
}

// New validates a decoded YAML mapping and builds a Task from it,
// mirroring TaskNew.validate_attrs().get_task() (§4.4): every key must be
// either a reserved attribute or a registered module name, and exactly one
// module key must be present.
func New(raw map[string]any) (Task, error) {
	var moduleNames []string
	for key := range raw {
		if fieldNames[key] {
			continue
		}
		if _, ok := module.Lookup(key); ok {
			moduleNames = append(moduleNames, key)
			continue
		}
		return Task{}, anverr.New(anverr.InvalidData,
			fmt.Sprintf("key %q is not a task attribute or registered module", key))
	}

	sort.Strings(moduleNames)
	switch len(moduleNames) {
	case 0:
		return Task{}, anverr.New(anverr.NotFound, "no module found in task")
	case 1:
		// fallthrough below
	default:
		return Task{}, anverr.New(anverr.InvalidData,
			fmt.Sprintf("multiple modules found in task: %v", moduleNames))
	}
	moduleName := moduleNames[0]

	t := Task{
		ModuleName: moduleName,
		Params:     raw[moduleName],
	}
	if name, ok := raw["name"].(string); ok {
		t.Name = name
	}
	if when, ok := raw["when"].(string); ok {
		t.When = when
	}
	if register, ok := raw["register"].(string); ok {
		t.Register = register
	}
	if loopVal, present := raw["loop"]; present {
		t.Loop = loopVal
		t.HasLoop = true
	}
	if ignoreErrors, ok := raw["ignore_errors"].(bool); ok {
		t.IgnoreErrors = ignoreErrors
	}
	if changedWhen, ok := raw["changed_when"].(string); ok {
		t.ChangedWhen = changedWhen
	}
	if failedWhen, ok := raw["failed_when"].(string); ok {
		t.FailedWhen = failedWhen
	}
	return t, nil
}

// Engine holds the shared dependencies every Task.Exec call needs: the
// renderer, check-mode/diff settings, and status/diff sinks.
type Engine struct {
	Render    *render.Engine
	CheckMode bool
	Diff      logging.DiffSink
	Status    *logging.StatusLogger
}

// NewEngine builds an Engine with a fresh renderer.
func NewEngine(checkMode bool, diff logging.DiffSink, status *logging.StatusLogger) *Engine {
	return &Engine{Render: render.New(), CheckMode: checkMode, Diff: diff, Status: status}
}

// Exec runs t against v, returning the new variable context (§4.3/§4.4):
// guard evaluation, loop expansion, parameter rendering, module dispatch,
// and register binding, in that order.
func (e *Engine) Exec(t Task, v vars.Vars) (vars.Vars, error) {
	shouldRun, err := e.isExec(t, v)
	if err != nil {
		return nil, err
	}
	if !shouldRun {
		if e.Status != nil {
			e.Status.Task(t.ModuleName, t.Name, logging.StatusSkipping, "")
		}
		return v, nil
	}

	mod, ok := module.Lookup(t.ModuleName)
	if !ok {
		return nil, anverr.New(anverr.NotFound, "module not found: "+t.ModuleName)
	}

	var result any
	var newVars vars.Vars
	if t.HasLoop {
		items, iterErr := e.renderIterator(t, v)
		if iterErr != nil {
			return nil, iterErr
		}
		results := make([]module.Result, 0, len(items))
		merged := v.Clone()
		for _, item := range items {
			iterVars := v.Clone().Insert("item", item)
			params, renderErr := e.renderParams(t, mod, iterVars)
			if renderErr != nil {
				return nil, renderErr
			}
			res, iterNewVars, execErr := mod.Exec(module.Context{
				Params: params, Vars: iterVars, CheckMode: e.CheckMode, Diff: e.Diff, Status: e.Status,
			})
			res, execErr = e.applyOverrides(t, res, execErr, iterVars)
			e.logResult(t, res, execErr)
			if execErr != nil {
				if t.IgnoreErrors {
					return v, nil
				}
				return nil, execErr
			}
			results = append(results, res)
			merged = merged.Extend(iterNewVars)
		}
		result = results
		newVars = merged
	} else {
		params, renderErr := e.renderParams(t, mod, v)
		if renderErr != nil {
			return nil, renderErr
		}
		res, execNewVars, execErr := mod.Exec(module.Context{
			Params: params, Vars: v, CheckMode: e.CheckMode, Diff: e.Diff, Status: e.Status,
		})
		res, execErr = e.applyOverrides(t, res, execErr, v)
		e.logResult(t, res, execErr)
		if execErr != nil {
			if t.IgnoreErrors {
				return v, nil
			}
			return nil, execErr
		}
		result = res
		newVars = v.Clone().Extend(execNewVars)
	}

	if t.Register != "" {
		encoded, encErr := json.Marshal(result)
		if encErr != nil {
			return nil, anverr.Wrap(anverr.InvalidData, encErr, "encoding registered result")
		}
		var registered any
		if decErr := json.Unmarshal(encoded, &registered); decErr != nil {
			return nil, anverr.Wrap(anverr.InvalidData, decErr, "encoding registered result")
		}
		newVars = newVars.Insert(t.Register, registered)
	}
	return newVars, nil
}

// applyOverrides honours the supplemented changed_when/failed_when task
// attributes: each, when present, is rendered the same way `when` is and
// overrides the module's own verdict.
// failed_when synthesizes an Other-kind error when it evaluates true,
// taking priority over any error the module itself returned.
func (e *Engine) applyOverrides(t Task, res module.Result, execErr error, v vars.Vars) (module.Result, error) {
	if t.ChangedWhen != "" {
		changed, err := e.Render.EvalBool(t.ChangedWhen, v)
		if err != nil {
			return res, err
		}
		res.Changed = changed
	}
	if t.FailedWhen != "" {
		failed, err := e.Render.EvalBool(t.FailedWhen, v)
		if err != nil {
			return res, err
		}
		if failed {
			return res, anverr.New(anverr.Other, "task failed: failed_when condition was true")
		}
		return res, nil
	}
	return res, execErr
}

func (e *Engine) logResult(t Task, res module.Result, err error) {
	if e.Status == nil {
		return
	}
	status := logging.StatusOK
	switch {
	case err != nil:
		status = logging.StatusFailed
	case res.Changed:
		status = logging.StatusChanged
	}
	e.Status.Task(t.ModuleName, t.Name, status, res.Output)
}

// isExec evaluates the `when` guard, mirroring Task::is_exec (§4.3): no
// guard means always run; otherwise the guard goes through EvalBool, so it
// must evaluate to a CEL boolean: false skips the task, and a non-boolean
// result is an InvalidData error rather than being treated as true.
func (e *Engine) isExec(t Task, v vars.Vars) (bool, error) {
	if t.When == "" {
		return true, nil
	}
	return e.Render.EvalBool(t.When, v)
}

// renderParams renders t.Params against v (§4.2): a mapping has each
// string leaf rendered independently (keys untouched); a bare string
// renders as a whole. force_string_on_params modules get this applied to
// their own raw value after rendering, inside module.DecodeParams.
func (e *Engine) renderParams(t Task, mod module.Module, v vars.Vars) (any, error) {
	switch p := t.Params.(type) {
	case map[string]any:
		rendered, err := e.Render.RenderValue(p, v)
		if err != nil {
			return nil, err
		}
		return rendered, nil
	case string:
		return e.Render.RenderString(p, v)
	default:
		return p, nil
	}
}

// renderIterator expands t.Loop into its string items (§4.3): a string
// loop value is itself rendered and, if it evaluates to a list, iterated;
// otherwise the single rendered string is the sole item. A native
// sequence has each element converted to a string: strings as they are,
// numbers formatted, and any other element is an InvalidData error.
func (e *Engine) renderIterator(t Task, v vars.Vars) ([]string, error) {
	switch loopVal := t.Loop.(type) {
	case string:
		rendered, err := e.Render.RenderExpr(loopVal, v)
		if err != nil {
			return nil, err
		}
		switch r := rendered.(type) {
		case []any:
			return stringifyItems(r)
		case string:
			return []string{r}, nil
		default:
			return []string{fmt.Sprint(r)}, nil
		}
	case []any:
		return stringifyItems(loopVal)
	default:
		return nil, anverr.New(anverr.NotFound, "loop is not iterable")
	}
}

func stringifyItems(items []any) ([]string, error) {
	out := make([]string, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			out[i] = v
		case float64:
			out[i] = formatLoopNumber(v)
		default:
			return nil, anverr.New(anverr.InvalidData, fmt.Sprintf("%v is not a valid loop item", item))
		}
	}
	return out, nil
}

func formatLoopNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
