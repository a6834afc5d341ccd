// Copyright 2026 The Anvil Authors
// SPDX-License-Identifier: Apache-2.0

package anverr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromString(t *testing.T) {
	err := New(InvalidData, "bad task")
	assert.Equal(t, InvalidData, err.Kind)
	assert.Equal(t, "bad task", err.Error())
}

func TestNewFromError(t *testing.T) {
	cause := errors.New("permission denied")
	err := New(IOError, cause)
	require.Equal(t, IOError, err.Kind)
	assert.Equal(t, "permission denied", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("exit status 1")
	err := Wrap(SubprocessFail, cause, "apt-get failed")
	assert.Equal(t, "apt-get failed: exit status 1", err.Error())
	assert.True(t, errors.Is(err, cause))
}

func TestKindOfUnwrapsChain(t *testing.T) {
	inner := New(NotFound, "no such file")
	outer := fmt.Errorf("reading task file: %w", inner)
	assert.Equal(t, NotFound, KindOf(outer))
	assert.True(t, Is(outer, NotFound))
}

func TestKindOfDefaultsToOther(t *testing.T) {
	assert.Equal(t, Other, KindOf(errors.New("plain")))
}

func TestStringer(t *testing.T) {
	assert.Equal(t, "GracefulExit", GracefulExit.String())
	assert.Equal(t, "Other", Kind(99).String())
}
