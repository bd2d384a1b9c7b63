// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package walker enumerates scan targets under one or more root directories.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"shroud/internal/faults"
	"shroud/internal/scan"
)

// TempPrefix marks files written by the output writer. They are never scanned.
const TempPrefix = ".shroud-"

// DefaultMaxFileSize is the size ceiling for a single target
const DefaultMaxFileSize = 100 * 1024 * 1024

// Options configures a Walker
type Options struct {
	// Roots are walked in the given order. A root may also be a single file.
	Roots []string

	// Extensions restricts the recognized set further. Empty means every recognized extension.
	Extensions []string

	// Exclude holds glob patterns matched against the base name and the root-relative path
	Exclude []string

	// SkipDirs are absolute directories never descended into (output and backup dirs)
	SkipDirs []string

	// FollowFileSymlinks scans symlinks that resolve to regular files. Directory symlinks are never followed.
	FollowFileSymlinks bool

	// MaxFileSize skips larger files with an UnreadableFile fault. Zero uses DefaultMaxFileSize.
	MaxFileSize int64
}

// Walker produces ScanTargets in a deterministic order
type Walker struct {
	opts       Options
	extensions map[string]bool
	skipDirs   map[string]bool
}

// New creates a Walker
func New(opts Options) *Walker {
	w := &Walker{
		opts:     opts,
		skipDirs: make(map[string]bool),
	}
	if opts.MaxFileSize <= 0 {
		w.opts.MaxFileSize = DefaultMaxFileSize
	}
	if len(opts.Extensions) > 0 {
		w.extensions = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext != "" && !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			w.extensions[ext] = true
		}
	}
	for _, dir := range opts.SkipDirs {
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(dir); err == nil {
			w.skipDirs[filepath.Clean(abs)] = true
		}
	}
	return w
}

// Targets returns a lazy sequence of targets. Every call starts a fresh walk,
// so the sequence can be restarted. Entries are visited lexicographically per
// directory level. Per-entry failures are yielded as errors and the walk continues.
func (w *Walker) Targets(ctx context.Context) iter.Seq2[scan.ScanTarget, error] {
	return func(yield func(scan.ScanTarget, error) bool) {
		for _, root := range w.opts.Roots {
			if ctx.Err() != nil {
				return
			}
			if !w.walkRoot(ctx, filepath.Clean(root), yield) {
				return
			}
		}
	}
}

func (w *Walker) walkRoot(ctx context.Context, root string, yield func(scan.ScanTarget, error) bool) bool {
	info, err := os.Stat(root)
	if err != nil {
		return yield(scan.ScanTarget{}, faults.New(faults.UnreadableFile, "walk", root, err))
	}
	if !info.IsDir() {
		target, ok, ferr := w.consider(filepath.Dir(root), root, info)
		if ferr != nil {
			return yield(scan.ScanTarget{}, ferr)
		}
		if ok {
			return yield(target, nil)
		}
		return true
	}

	keepGoing := true
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			keepGoing = false
			return filepath.SkipAll
		}
		if err != nil {
			if !yield(scan.ScanTarget{}, faults.New(faults.UnreadableFile, "walk", path, err)) {
				keepGoing = false
				return filepath.SkipAll
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && (w.skipDir(path) || w.excludedDir(root, path)) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), TempPrefix) {
			return nil
		}
		if _, ok := w.recognized(path); !ok {
			return nil
		}

		var info fs.FileInfo
		if d.Type()&fs.ModeSymlink != 0 {
			if !w.opts.FollowFileSymlinks {
				return nil
			}
			info, err = os.Stat(path)
			if err != nil {
				// broken symlink
				if !yield(scan.ScanTarget{}, faults.New(faults.UnreadableFile, "walk", path, err)) {
					keepGoing = false
					return filepath.SkipAll
				}
				return nil
			}
			if info.IsDir() {
				return nil
			}
		} else {
			info, err = d.Info()
			if err != nil {
				if !yield(scan.ScanTarget{}, faults.New(faults.UnreadableFile, "walk", path, err)) {
					keepGoing = false
					return filepath.SkipAll
				}
				return nil
			}
		}

		target, ok, ferr := w.consider(root, path, info)
		if ferr != nil {
			if !yield(scan.ScanTarget{}, ferr) {
				keepGoing = false
				return filepath.SkipAll
			}
			return nil
		}
		if ok && !yield(target, nil) {
			keepGoing = false
			return filepath.SkipAll
		}
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, filepath.SkipAll) {
		return yield(scan.ScanTarget{}, faults.New(faults.UnreadableFile, "walk", root, walkErr))
	}
	return keepGoing
}

// consider applies extension, exclude and size filters to one file
func (w *Walker) consider(root, path string, info fs.FileInfo) (scan.ScanTarget, bool, error) {
	if !info.Mode().IsRegular() {
		return scan.ScanTarget{}, false, nil
	}
	if _, ok := w.recognized(path); !ok {
		return scan.ScanTarget{}, false, nil
	}
	target, ok := scan.NewTarget(root, path, info.Size(), info.ModTime())
	if !ok {
		return scan.ScanTarget{}, false, nil
	}
	if w.excluded(target) {
		return scan.ScanTarget{}, false, nil
	}
	if info.Size() > w.opts.MaxFileSize {
		return scan.ScanTarget{}, false, faults.New(faults.UnreadableFile, "walk", path,
			fmt.Errorf("file too large (%d bytes, max %d)", info.Size(), w.opts.MaxFileSize))
	}
	return target, true, nil
}

func (w *Walker) recognized(path string) (scan.TypeTag, bool) {
	t, ok := scan.ResolveType(path)
	if !ok {
		return t, false
	}
	if w.extensions != nil && !w.extensions[strings.ToLower(filepath.Ext(path))] {
		return t, false
	}
	return t, true
}

func (w *Walker) excluded(target scan.ScanTarget) bool {
	base := filepath.Base(target.Path)
	for _, pattern := range w.opts.Exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, target.Rel); ok {
			return true
		}
	}
	return false
}

// excludedDir matches exclude patterns against a directory's base name and
// root-relative path, so ".git" prunes the whole tree
func (w *Walker) excludedDir(root, path string) bool {
	base := filepath.Base(path)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = base
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range w.opts.Exclude {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Walker) skipDir(path string) bool {
	if len(w.skipDirs) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return w.skipDirs[filepath.Clean(abs)]
}
