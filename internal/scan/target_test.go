// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveType(t *testing.T) {
	cases := []struct {
		path string
		want TypeTag
		ok   bool
	}{
		{"notes.txt", PlainText, true},
		{"app.LOG", PlainText, true},
		{"script.py", PlainText, true},
		{"data.csv", StructuredText, true},
		{"conf.yml", StructuredText, true},
		{"settings.ini", StructuredText, true},
		{"scan.PNG", Image, true},
		{"photo.jpeg", Image, true},
		{"page.webp", Image, true},
		{"doc.pdf", PDF, true},
		{"archive.zip", 0, false},
		{"Makefile", 0, false},
		{"conf.yaml", 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			got, ok := ResolveType(tc.path)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}

func TestRecognizedExtensionsSortedAndComplete(t *testing.T) {
	exts := RecognizedExtensions()
	assert.Len(t, exts, 18)
	assert.IsNonDecreasing(t, exts)
}

func TestNewTargetRelativePath(t *testing.T) {
	target, ok := NewTarget("/data", "/data/a/b.json", 12, time.Unix(0, 0))
	require.True(t, ok)
	assert.Equal(t, "a/b.json", target.Rel)
	assert.Equal(t, StructuredText, target.Type)
	assert.True(t, target.Type.IsText())

	_, ok = NewTarget("/data", "/data/a/b.bin", 12, time.Unix(0, 0))
	assert.False(t, ok)
}
