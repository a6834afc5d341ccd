// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

// Package render implements the engine's only view of the template
// renderer: render a string or a mapping-of-strings against a JSON-shaped
// variable context, and evaluate a boolean-coerced guard expression. The
// engine treats everything here as opaque (§4.2) — it never interprets
// template syntax itself.
//
// The implementation is a CEL-backed templating engine: expressions are
// delimited by {{ ... }} to match the Jinja-flavoured syntax this engine's
// task scripts use (e.g. `{{ range(end=3) }}`), with a direct
// boolean-evaluation path for `when` guards rather than the
// render-inside-if/else trick a plain string-templating engine would need.
package render

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/anvil-sh/anvil/internal/anverr"
)

// rangeKwargPattern rewrites Jinja-style range(end=N) into CEL's positional
// range(N) — CEL has no keyword-argument call syntax, and range(end=...) is
// the one construct this engine's loop expressions insist on spelling that
// way.
var rangeKwargPattern = regexp.MustCompile(`range\(\s*end\s*=\s*([^)]+)\)`)

// pipeBoolFilterPattern matches a trailing ` | bool` Jinja filter.
var pipeBoolFilterPattern = regexp.MustCompile(`^(.*)\|\s*bool\s*$`)

func rewritePipeFilters(source string) string {
	if m := pipeBoolFilterPattern.FindStringSubmatch(strings.TrimSpace(source)); m != nil {
		return "bool(" + strings.TrimSpace(m[1]) + ")"
	}
	return source
}

// Engine renders strings and values against a variable context.
type Engine struct{}

// New returns a ready-to-use Engine. It holds no state: compiled CEL
// environments/programs are not cached — the task engine renders at most a
// handful of expressions per task, so the added complexity of an
// env/program cache buys nothing here.
func New() *Engine {
	return &Engine{}
}

// RenderString evaluates a template to a string. Used for string task
// params (§4.2).
func (e *Engine) RenderString(source string, ctx map[string]any) (string, error) {
	value, err := e.RenderExpr(source, ctx)
	if err != nil {
		return "", err
	}
	return stringify(value), nil
}

// RenderExpr renders source and returns the native Go value the expression
// evaluated to, rather than coercing to a string. A template with no {{ }}
// expressions (or with surrounding literal text) still returns a string;
// only a template whose entire trimmed body is one {{ expr }} preserves the
// expression's native type — this is what lets `loop: "{{ range(end=3) }}"`
// yield an actual list instead of its JSON-text rendering (§4.2's loop
// evaluation: "if it deserialises to a sequence, iterate its elements").
func (e *Engine) RenderExpr(source string, ctx map[string]any) (any, error) {
	matches := findExpressions(source)
	if len(matches) == 0 {
		return source, nil
	}

	trimmed := strings.TrimSpace(source)
	if len(matches) == 1 && matches[0].full == trimmed {
		return e.eval(matches[0].inner, ctx)
	}

	rendered := source
	for _, m := range matches {
		value, err := e.eval(m.inner, ctx)
		if err != nil {
			return nil, err
		}
		rendered = strings.Replace(rendered, m.full, stringify(value), 1)
	}
	return rendered, nil
}

// RenderValue walks a decoded YAML/JSON value: if it is a mapping, every
// string leaf (not the keys) is rendered; if it is a scalar string, it is
// rendered; sequences are walked element-wise; anything else passes through
// unchanged (§4.2).
func (e *Engine) RenderValue(value any, ctx map[string]any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			rendered, err := e.RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			rendered, err := e.RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case string:
		rendered, err := e.RenderString(v, ctx)
		if err != nil {
			return nil, err
		}
		return rendered, nil
	default:
		return v, nil
	}
}

// EvalBool compiles source directly as a CEL boolean expression (not
// wrapped in {{ }}) and returns its result. Used for `when`, `changed_when`,
// and `failed_when` guards.
//
// This is the "dedicated boolean evaluator" alternative Design Notes §9
// sanctions in place of rendering the guard inside a fixed if/else envelope
// and string-comparing against "false": CEL already evaluates expressions
// natively, so there is no envelope to render. The one piece of the
// original syntax this keeps verbatim is the Jinja pipe-filter spelling
// `expr | bool` (e.g. `when: "boo | bool"`) — CEL has no pipe operator, so
// it is rewritten to the equivalent call form `bool(expr)` before
// compiling.
func (e *Engine) EvalBool(source string, ctx map[string]any) (bool, error) {
	source = rewritePipeFilters(source)
	val, err := e.eval(source, ctx)
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, anverr.New(anverr.InvalidData,
			fmt.Sprintf("guard %q did not evaluate to a boolean, got %T", source, val))
	}
	return b, nil
}

func (e *Engine) eval(expression string, ctx map[string]any) (any, error) {
	expression = rangeKwargPattern.ReplaceAllString(expression, "range($1)")

	env, err := buildEnv(ctx)
	if err != nil {
		return nil, anverr.Wrap(anverr.InvalidData, err, "failed to build render environment")
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, anverr.Wrap(anverr.InvalidData, issues.Err(), fmt.Sprintf("compiling expression %q", expression))
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, anverr.Wrap(anverr.InvalidData, err, fmt.Sprintf("preparing expression %q", expression))
	}
	result, _, err := program.Eval(ctx)
	if err != nil {
		return nil, anverr.Wrap(anverr.InvalidData, err, fmt.Sprintf("evaluating expression %q", expression))
	}
	return convertCELValue(result), nil
}

type exprMatch struct {
	full  string
	inner string
}

// findExpressions scans for {{ ... }} spans, tolerating nested braces so a
// template can itself contain a literal "{{" inside an inner expression.
func findExpressions(s string) []exprMatch {
	var out []exprMatch
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "{{")
		if start == -1 {
			break
		}
		start += i
		depth := 1
		pos := start + 2
		for pos+1 < len(s) && depth > 0 {
			switch {
			case strings.HasPrefix(s[pos:], "{{"):
				depth++
				pos += 2
				continue
			case strings.HasPrefix(s[pos:], "}}"):
				depth--
				pos += 2
				continue
			}
			pos++
		}
		if depth == 0 {
			out = append(out, exprMatch{
				full:  s[start:pos],
				inner: strings.TrimSpace(s[start+2 : pos-2]),
			})
			i = pos
		} else {
			break
		}
	}
	return out
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// buildEnv declares every top-level context key as a dynamically typed CEL
// variable, plus the engine's helper functions.
func buildEnv(ctx map[string]any) (*cel.Env, error) {
	opts := []cel.EnvOption{cel.OptionalTypes()}
	for key := range ctx {
		opts = append(opts, cel.Variable(key, cel.DynType))
	}
	opts = append(opts, helperFunctions()...)
	return cel.NewEnv(opts...)
}

// convertCELValue collapses CEL's dynamic ref.Val results into native Go
// values so rendered output lines up with the Vars context's own types.
func convertCELValue(val ref.Val) any {
	switch val.Type() {
	case types.StringType:
		return val.Value().(string)
	case types.IntType:
		return float64(val.Value().(int64))
	case types.UintType:
		return float64(val.Value().(uint64))
	case types.DoubleType:
		return val.Value().(float64)
	case types.BoolType:
		return val.Value().(bool)
	case types.ListType:
		list, ok := val.Value().([]ref.Val)
		if !ok {
			if native, ok := val.Value().([]any); ok {
				return native
			}
			return val.Value()
		}
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = convertCELValue(item)
		}
		return out
	case types.MapType:
		switch m := val.Value().(type) {
		case map[ref.Val]ref.Val:
			out := make(map[string]any, len(m))
			for k, v := range m {
				out[fmt.Sprintf("%v", k.Value())] = convertCELValue(v)
			}
			return out
		case map[string]any:
			return m
		default:
			return val.Value()
		}
	case types.NullType:
		return nil
	default:
		return val.Value()
	}
}
