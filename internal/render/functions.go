// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// helperFunctions declares the small set of CEL functions the engine adds
// on top of the standard library: a range() generator for loop expansion,
// and a bool() coercion filling in for Jinja's `| bool`.
func helperFunctions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Function("range",
			cel.Overload("range_int", []*cel.Type{cel.IntType}, cel.ListType(cel.IntType),
				cel.UnaryBinding(rangeEnd)),
		),
		cel.Function("bool",
			cel.Overload("bool_dyn", []*cel.Type{cel.DynType}, cel.BoolType,
				cel.UnaryBinding(coerceBool)),
		),
	}
}

// rangeEnd implements range(end): the half-open sequence [0, end).
// Negative or zero end yields an empty list, matching Python/Rust range()
// semantics rather than erroring.
func rangeEnd(val ref.Val) ref.Val {
	end, ok := val.(types.Int)
	if !ok {
		return types.NewErr("range() argument must be an int")
	}
	n := int64(end)
	items := make([]ref.Val, 0, max64(n, 0))
	for i := int64(0); i < n; i++ {
		items = append(items, types.Int(i))
	}
	return types.NewDynamicList(types.DefaultTypeAdapter, items)
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// coerceBool mirrors Ansible/Jinja's `| bool` filter: recognises the usual
// truthy/falsy string spellings case-insensitively, falls through to CEL's
// own truthiness for non-string values.
func coerceBool(val ref.Val) ref.Val {
	switch v := val.(type) {
	case types.String:
		switch strings.ToLower(strings.TrimSpace(string(v))) {
		case "true", "yes", "on", "1":
			return types.True
		case "false", "no", "off", "0", "":
			return types.False
		default:
			return types.NewErr("bool(): cannot coerce %q", string(v))
		}
	case types.Bool:
		return v
	case types.Int:
		return types.Bool(v != 0)
	case types.Double:
		return types.Bool(v != 0)
	default:
		if sizer, ok := val.(traits.Sizer); ok {
			return types.Bool(sizer.Size().Value().(int64) != 0)
		}
		return types.NewErr("bool(): cannot coerce %T", val)
	}
}
