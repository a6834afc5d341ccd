// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package docopt

import (
	"testing"

	"github.com/anvil-sh/anvil/internal/anverr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	file := "\n#!/usr/bin/env anvil\n#\n# Usage:\n#   ./dots (install|update|help) <package_filters>...\n#\n"
	result, err := Parse(file, []string{"install", "foo"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"help":            false,
		"install":         true,
		"update":          false,
		"package_filters": []any{"foo"},
	}, map[string]any(result))
}

func TestParseRepeatable(t *testing.T) {
	file := "\n#!/usr/bin/env anvil\n#\n# Usage:\n#   ./dots (install|update|help) <package_filters>...\n#\n"
	result, err := Parse(file, []string{"install", "foo", "boo"})
	require.NoError(t, err)
	assert.Equal(t, []any{"foo", "boo"}, result["package_filters"])
}

func TestParseCpExample(t *testing.T) {
	file := "\n#!/usr/bin/env anvil\n#\n# Usage:\n#   cp <source> <dest>\n#   cp <source>... <dest>\n#\n"
	result, err := Parse(file, []string{"foo", "boo", "/tmp"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"source": []any{"foo", "boo"},
		"dest":   "/tmp",
	}, map[string]any(result))
}

func TestParseDoubleRepeatable(t *testing.T) {
	file := "\n#!/usr/bin/env anvil\n#\n# Usage:\n#   foo (<a> <b>)...\n#\n"
	result, err := Parse(file, []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": []any{"a", "c"},
		"b": []any{"b", "d"},
	}, map[string]any(result))
}

func TestParseDoubleRepeatableError(t *testing.T) {
	file := "\n#!/usr/bin/env anvil\n#\n# Usage:\n#   foo (<a> <b>)...\n#\n"
	_, err := Parse(file, []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Equal(t, anverr.InvalidData, anverr.KindOf(err))
}

func TestParsePrintHelp(t *testing.T) {
	file := "\n#!/usr/bin/env anvil\n#\n# Usage:\n#   ./dots (install|update|help) <package_filters>...\n#\n"
	_, err := Parse(file, []string{"help"})
	require.Error(t, err)
	assert.Equal(t, anverr.GracefulExit, anverr.KindOf(err))
}

func TestParseHelp(t *testing.T) {
	file := "\n#!/usr/bin/env anvil\n#\n# Usage:\n#   cp <source> <dest>\n#   cp <source>... <dest>\n#\n"
	result := ParseHelp(file)
	assert.Equal(t, "\nUsage:\n  cp <source> <dest>\n  cp <source>... <dest>\n", result)
}

func TestParseUsageMultiline(t *testing.T) {
	doc := "\nUsage:\n  cp <source> <dest>\n  cp <source>... <dest>\n"
	usage, ok := parseUsage(doc)
	require.True(t, ok)
	assert.Equal(t, []string{"cp <source> <dest>", "cp <source>... <dest>"}, usage)
}

func TestParseUsageOneLine(t *testing.T) {
	doc := "\nUsage:  cp <source> <dest>\n"
	usage, ok := parseUsage(doc)
	require.True(t, ok)
	assert.Equal(t, []string{"cp <source> <dest>"}, usage)
}

func TestParseUsageSectionAfter(t *testing.T) {
	doc := "\nUsage:\n  cp <source> <dest>\n  cp <source>... <dest>\nFoo:\n  buu\n  fuu\n"
	usage, ok := parseUsage(doc)
	require.True(t, ok)
	assert.Equal(t, []string{"cp <source> <dest>", "cp <source>... <dest>"}, usage)
}

func TestExpandUsagesAlternationTree(t *testing.T) {
	result := expandUsages([]string{"foo ((a | b) (c | d))"}, 2)
	assert.Equal(t, []string{"foo a c", "foo a d", "foo b c", "foo b d"}, result)
}

func TestExpandUsagesFlatAlternation(t *testing.T) {
	result := expandUsages([]string{"foo (a | b | c)"}, 1)
	assert.Equal(t, []string{"foo a", "foo b", "foo c"}, result)
}

func TestExpandUsagesOptional(t *testing.T) {
	result := expandUsages([]string{"foo a [b] c"}, 1)
	assert.Equal(t, []string{"foo a b c", "foo a c"}, result)
}

func TestExpandUsagesPositional(t *testing.T) {
	result := expandUsages([]string{"foo (a <b> | c <d>)"}, 2)
	assert.Equal(t, []string{"foo a <b>", "foo c <d>"}, result)
}

func TestRepeatUntilFill(t *testing.T) {
	result := repeatUntilFill("foo (<a> <b>)... <c>", "(<a> <b>)...", "<a> <b>", 5)
	assert.Equal(t, "foo <a>+ <b>+ <a>+ <b>+ <c>", result)
}

func TestRepeatUntilFillSimple(t *testing.T) {
	result := repeatUntilFill("foo <a>... <b>", "<a>...", "<a>", 4)
	assert.Equal(t, "foo <a>+ <a>+ <a>+ <b>", result)
}

func TestParseRequired(t *testing.T) {
	bound, ok := parseRequired("foo", "foo")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"foo": true}, bound)
}

func TestParseRequiredFails(t *testing.T) {
	_, ok := parseRequired("boo", "foo")
	assert.False(t, ok)
}

func TestParsePositional(t *testing.T) {
	assert.Equal(t, map[string]any{"foo": "boo"}, parsePositional("boo", "<foo>"))
}

func TestParsePositionalRepeatable(t *testing.T) {
	assert.Equal(t, map[string]any{"foo": []any{"boo"}}, parsePositional("boo", "<foo>+"))
}
