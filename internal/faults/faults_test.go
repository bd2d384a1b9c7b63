// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package faults

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKindSentinel(t *testing.T) {
	err := New(ExtractionUnavailable, "extract", "/tmp/a.png", errors.New("tesseract not found"))

	assert.True(t, errors.Is(err, ErrExtractionUnavailable))
	assert.False(t, errors.Is(err, ErrUnreadableFile))
	assert.Contains(t, err.Error(), "extraction_unavailable")
	assert.Contains(t, err.Error(), "/tmp/a.png")
}

func TestErrorUnwrapReachesCause(t *testing.T) {
	err := New(UnreadableFile, "walk", "/x", os.ErrPermission)
	assert.True(t, errors.Is(err, os.ErrPermission))

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, UnreadableFile, KindOf(wrapped))
}

func TestWrapKeepsExistingKind(t *testing.T) {
	inner := New(OutputWriteFailure, "write", "/x", errors.New("disk full"))
	got := Wrap(UnreadableFile, "extract", "/x", inner)
	assert.Equal(t, OutputWriteFailure, KindOf(got))

	assert.Nil(t, Wrap(UnreadableFile, "extract", "/x", nil))

	plain := Wrap(UnreadableFile, "extract", "/x", errors.New("boom"))
	require.Error(t, plain)
	assert.Equal(t, UnreadableFile, KindOf(plain))
}

func TestOnlyConfigurationIsFatal(t *testing.T) {
	for _, k := range []Kind{UnreadableFile, UnsupportedType, ExtractionUnavailable, RecheckUnavailable, OutputWriteFailure} {
		assert.False(t, k.Fatal(), k.String())
	}
	assert.True(t, Configuration.Fatal())
	assert.Equal(t, Configuration, KindOf(Configf("bad mode %q", "x")))
}
