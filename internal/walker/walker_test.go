// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shroud/internal/faults"
	"shroud/internal/scan"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
}

// collect drains the walk, separating targets from per-entry faults
func collect(w *Walker) ([]scan.ScanTarget, []error) {
	var targets []scan.ScanTarget
	var errs []error
	for target, err := range w.Targets(context.Background()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		targets = append(targets, target)
	}
	return targets, errs
}

func rels(targets []scan.ScanTarget) []string {
	out := make([]string, 0, len(targets))
	for _, tg := range targets {
		out = append(out, tg.Rel)
	}
	return out
}

func TestTargetsLexicographicAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root,
		"b.txt", "a.json", "c.bin", "sub/z.png", "sub/a.pdf", "A/readme.md", ".shroud-123.tmp", "sub/notes.TXT")

	w := New(Options{Roots: []string{root}})
	targets, errs := collect(w)
	require.Empty(t, errs)

	assert.Equal(t, []string{"A/readme.md", "a.json", "b.txt", "sub/a.pdf", "sub/notes.TXT", "sub/z.png"}, rels(targets))
	assert.Equal(t, scan.PDF, targets[3].Type)
	assert.Equal(t, scan.Image, targets[5].Type)
}

func TestTargetsRestartableAndReproducible(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "x/1.txt", "x/2.txt", "y.csv", "w/q.log")

	w := New(Options{Roots: []string{root}})
	first, _ := collect(w)
	second, _ := collect(w)
	assert.Equal(t, rels(first), rels(second))
	assert.Len(t, first, 4)
}

func TestTargetsExcludeAndSkipDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "keep.txt", "drop.log", "out/copy.txt", "vendor/lib.py")

	w := New(Options{
		Roots:    []string{root},
		Exclude:  []string{"*.log", "vendor/*"},
		SkipDirs: []string{filepath.Join(root, "out")},
	})
	targets, errs := collect(w)
	require.Empty(t, errs)
	assert.Equal(t, []string{"keep.txt"}, rels(targets))
}

func TestTargetsExcludePrunesDirectories(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", ".git/config.txt", "docs/node_modules/x.md", "docs/b.md")

	w := New(Options{Roots: []string{root}, Exclude: []string{".git", "node_modules"}})
	targets, errs := collect(w)
	require.Empty(t, errs)
	assert.Equal(t, []string{"a.txt", "docs/b.md"}, rels(targets))
}

func TestTargetsExtensionRestriction(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b.pdf", "c.png")

	w := New(Options{Roots: []string{root}, Extensions: []string{"pdf", ".PNG"}})
	targets, _ := collect(w)
	assert.Equal(t, []string{"b.pdf", "c.png"}, rels(targets))
}

func TestTargetsBrokenSymlinkRecordedAndWalkContinues(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "z.txt")
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.txt"), filepath.Join(root, "m.txt")))

	w := New(Options{Roots: []string{root}, FollowFileSymlinks: true})
	targets, errs := collect(w)

	assert.Equal(t, []string{"a.txt", "z.txt"}, rels(targets))
	require.Len(t, errs, 1)
	assert.Equal(t, faults.UnreadableFile, faults.KindOf(errs[0]))
}

func TestTargetsUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	root := t.TempDir()
	writeTree(t, root, "a.txt", "locked/secret.txt", "z.txt")
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	w := New(Options{Roots: []string{root}})
	targets, errs := collect(w)
	assert.Equal(t, []string{"a.txt", "z.txt"}, rels(targets))
	require.NotEmpty(t, errs)
	assert.Equal(t, faults.UnreadableFile, faults.KindOf(errs[0]))
}

func TestTargetsSingleFileRootAndMissingRoot(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "one.txt")

	w := New(Options{Roots: []string{filepath.Join(root, "one.txt"), filepath.Join(root, "nope")}})
	targets, errs := collect(w)
	assert.Equal(t, []string{"one.txt"}, rels(targets))
	require.Len(t, errs, 1)
}

func TestTargetsTooLarge(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), make([]byte, 64), 0o644))

	w := New(Options{Roots: []string{root}, MaxFileSize: 10})
	targets, errs := collect(w)
	assert.Empty(t, targets)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "too large")
}

func TestTargetsStopsWhenConsumerBreaks(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, "a.txt", "b.txt", "c.txt")

	w := New(Options{Roots: []string{root, root}})
	count := 0
	for range w.Targets(context.Background()) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}
