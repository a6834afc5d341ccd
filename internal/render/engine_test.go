// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderStringInterpolation(t *testing.T) {
	e := New()
	out, err := e.RenderString("hello {{ name }}", map[string]any{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
}

func TestRenderStringNoExpressions(t *testing.T) {
	e := New()
	out, err := e.RenderString("plain text", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
}

func TestRenderStringComparison(t *testing.T) {
	e := New()
	out, err := e.RenderString("{{ count > 2 }}", map[string]any{"count": 3.0})
	require.NoError(t, err)
	assert.Equal(t, "true", out)
}

func TestRenderExprPreservesListType(t *testing.T) {
	e := New()
	val, err := e.RenderExpr("{{ range(end=3) }}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []any{0.0, 1.0, 2.0}, val)
}

func TestRenderValueMapLeaves(t *testing.T) {
	e := New()
	ctx := map[string]any{"name": "foo"}
	out, err := e.RenderValue(map[string]any{
		"path": "/tmp/{{ name }}",
		"keep": 3.0,
	}, ctx)
	require.NoError(t, err)
	m := out.(map[string]any)
	assert.Equal(t, "/tmp/foo", m["path"])
	assert.Equal(t, 3.0, m["keep"])
}

func TestEvalBoolTrue(t *testing.T) {
	e := New()
	ok, err := e.EvalBool("count > 1", map[string]any{"count": 2.0})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvalBoolNonBooleanIsError(t *testing.T) {
	e := New()
	_, err := e.EvalBool("1 + 1", map[string]any{})
	assert.Error(t, err)
}

func TestEvalBoolUsesBoolHelper(t *testing.T) {
	e := New()
	ok, err := e.EvalBool(`bool(flag)`, map[string]any{"flag": "yes"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvalBool(`bool(flag)`, map[string]any{"flag": "no"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvalBoolPipeBoolFilter(t *testing.T) {
	e := New()
	ok, err := e.EvalBool("boo | bool", map[string]any{"boo": "true"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvalBool("boo | bool", map[string]any{"boo": "false"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRenderExprMixedLiteralAndExpression(t *testing.T) {
	e := New()
	out, err := e.RenderExpr("count={{ n }}", map[string]any{"n": 4.0})
	require.NoError(t, err)
	assert.Equal(t, "count=4", out)
}
