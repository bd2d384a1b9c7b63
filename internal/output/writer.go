// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package output places redacted artifacts. Every write goes through a temp
// file in the destination directory followed by a rename, so a crash never
// leaves a half-written artifact in place of a file.
package output

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"shroud/internal/faults"
	"shroud/internal/scan"
)

// Mode selects where artifacts go
type Mode string

const (
	// ModeCopy mirrors each target's relative path under the output directory
	ModeCopy Mode = "copy"
	// ModeInPlace replaces the original file
	ModeInPlace Mode = "in_place"
	// ModeReport writes no artifacts
	ModeReport Mode = "report"
)

// TempPattern names in-flight temp files. The walker skips them.
const TempPattern = ".shroud-*.tmp"

// ParseMode validates a mode string
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeCopy, ModeInPlace, ModeReport:
		return m, nil
	case "":
		return ModeCopy, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (want copy, in_place or report)", s)
	}
}

// Options configures a Writer
type Options struct {
	Mode      Mode
	OutputDir string

	// BackupDir receives a copy of each original before in-place replacement.
	// Empty disables backups.
	BackupDir string

	// NestRoots prefixes mirrored paths with the root's base name, for runs
	// over several roots. Roots sharing a base name get -2, -3 suffixes in
	// the order given in Roots.
	NestRoots bool
	Roots     []string

	Logger *slog.Logger
}

// Writer commits artifacts according to the output mode
type Writer struct {
	opts     Options
	prefixes map[string]string
	logger   *slog.Logger
}

// NewWriter validates options and resolves directories to absolute paths
func NewWriter(opts Options) (*Writer, error) {
	if opts.Mode == "" {
		opts.Mode = ModeCopy
	}
	if _, err := ParseMode(string(opts.Mode)); err != nil {
		return nil, faults.New(faults.Configuration, "config", "", err)
	}
	if opts.Mode == ModeCopy {
		if opts.OutputDir == "" {
			return nil, faults.New(faults.Configuration, "config", "", errors.New("copy mode requires an output directory"))
		}
		abs, err := filepath.Abs(opts.OutputDir)
		if err != nil {
			return nil, faults.New(faults.Configuration, "config", opts.OutputDir, err)
		}
		opts.OutputDir = abs
	}
	if opts.BackupDir != "" {
		abs, err := filepath.Abs(opts.BackupDir)
		if err != nil {
			return nil, faults.New(faults.Configuration, "config", opts.BackupDir, err)
		}
		opts.BackupDir = abs
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		opts:     opts,
		prefixes: rootPrefixes(opts.Roots),
		logger:   logger.With("component", "output"),
	}, nil
}

// rootPrefixes assigns each root a distinct directory name. A root that is a
// single file is keyed by its parent, matching the walker's targets.
func rootPrefixes(roots []string) map[string]string {
	prefixes := make(map[string]string, len(roots))
	used := make(map[string]bool, len(roots))
	for _, root := range roots {
		key := rootKey(root)
		if info, err := os.Stat(root); err == nil && !info.IsDir() {
			key = filepath.Dir(key)
		}
		if _, seen := prefixes[key]; seen {
			continue
		}
		name := baseName(key)
		prefix := name
		for n := 2; used[prefix]; n++ {
			prefix = fmt.Sprintf("%s-%d", name, n)
		}
		used[prefix] = true
		prefixes[key] = prefix
	}
	return prefixes
}

func rootKey(root string) string {
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return filepath.Clean(root)
}

func baseName(dir string) string {
	name := filepath.Base(dir)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "root"
	}
	return name
}

// Mode returns the configured mode
func (w *Writer) Mode() Mode {
	return w.opts.Mode
}

// Excluded returns directories the walker must not descend into
func (w *Writer) Excluded() []string {
	var dirs []string
	if w.opts.Mode == ModeCopy {
		dirs = append(dirs, w.opts.OutputDir)
	}
	if w.opts.BackupDir != "" {
		dirs = append(dirs, w.opts.BackupDir)
	}
	return dirs
}

// mirror joins rel under base and refuses paths escaping it
func (w *Writer) mirror(base string, target scan.ScanTarget) (string, error) {
	rel := filepath.FromSlash(target.Rel)
	if rel == "" || rel == "." {
		rel = filepath.Base(target.Path)
	}
	if w.opts.NestRoots && target.Root != "" {
		prefix, ok := w.prefixes[rootKey(target.Root)]
		if !ok {
			prefix = baseName(rootKey(target.Root))
		}
		rel = filepath.Join(prefix, rel)
	}
	p := filepath.Clean(filepath.Join(base, rel))
	if p != base && !strings.HasPrefix(p, base+string(filepath.Separator)) {
		return "", fmt.Errorf("mirrored path would escape %s: %s", base, p)
	}
	return p, nil
}

// Destination returns where the artifact for target is written. ext replaces
// the file extension when non-empty.
func (w *Writer) Destination(target scan.ScanTarget, ext string) (string, error) {
	var dest string
	switch w.opts.Mode {
	case ModeReport:
		return "", nil
	case ModeInPlace:
		dest = target.Path
	default:
		p, err := w.mirror(w.opts.OutputDir, target)
		if err != nil {
			return "", err
		}
		dest = p
	}
	if ext == "" || strings.EqualFold(ext, filepath.Ext(dest)) {
		return dest, nil
	}

	// A sibling already carrying the new extension is another file, scanned
	// or not. Keep the full original name so neither artifact replaces it.
	orig := filepath.Ext(target.Path)
	sibling := strings.TrimSuffix(target.Path, orig) + ext
	if _, err := os.Lstat(sibling); err != nil {
		return strings.TrimSuffix(dest, filepath.Ext(dest)) + ext, nil
	}
	dest += ext
	if _, err := os.Lstat(target.Path + ext); err == nil {
		return "", fmt.Errorf("cannot rewrite %s to %s: both %s and %s already exist",
			filepath.Base(target.Path), ext, filepath.Base(sibling), filepath.Base(target.Path+ext))
	}
	return dest, nil
}

// Commit writes an artifact for target through fn, which receives the temp
// path to write. It returns the final path. Report mode writes nothing.
func (w *Writer) Commit(target scan.ScanTarget, fn func(tmp string) error) (string, error) {
	return w.CommitExt(target, "", fn)
}

// CommitExt is Commit with an extension rewrite. In in-place mode a rewritten
// extension removes the original once the new file is in place.
func (w *Writer) CommitExt(target scan.ScanTarget, ext string, fn func(tmp string) error) (string, error) {
	if w.opts.Mode == ModeReport {
		return "", nil
	}
	dest, err := w.Destination(target, ext)
	if err != nil {
		return "", faults.New(faults.OutputWriteFailure, "write", target.Path, err)
	}
	if err := w.commit(target, dest, fn); err != nil {
		return "", err
	}
	if w.opts.Mode == ModeInPlace && dest != target.Path {
		if err := os.Remove(target.Path); err != nil && !os.IsNotExist(err) {
			return dest, faults.New(faults.OutputWriteFailure, "write", target.Path,
				fmt.Errorf("removing original after rewrite to %s: %w", filepath.Base(dest), err))
		}
	}
	w.logger.Debug("artifact committed", "file", target.Path, "dest", dest, "mode", string(w.opts.Mode))
	return dest, nil
}

func (w *Writer) commit(target scan.ScanTarget, dest string, fn func(tmp string) error) error {
	fail := func(err error) error {
		var fe *faults.Error
		if errors.As(err, &fe) {
			return err
		}
		return faults.New(faults.OutputWriteFailure, "write", target.Path, err)
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create directory %s: %w", dir, err))
	}
	tmp, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return fail(fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpPath := tmp.Name()
	tmp.Close()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if err := fn(tmpPath); err != nil {
		return fail(err)
	}
	if err := syncFile(tmpPath); err != nil {
		return fail(err)
	}
	if info, err := os.Stat(target.Path); err == nil {
		if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
			w.logger.Warn("failed to preserve permissions", "file", target.Path, "error", err)
		}
	}
	if w.opts.Mode == ModeInPlace && w.opts.BackupDir != "" {
		if err := w.backup(target); err != nil {
			return fail(err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fail(fmt.Errorf("failed to move artifact into place: %w", err))
	}
	committed = true
	return nil
}

// backup copies the original under the backup directory, mirrored by Rel
func (w *Writer) backup(target scan.ScanTarget) error {
	dest, err := w.mirror(w.opts.BackupDir, target)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	if err := copyFile(target.Path, dest); err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	return nil
}

// CopyUnchanged mirrors a clean file into the output directory. Only copy mode copies.
func (w *Writer) CopyUnchanged(target scan.ScanTarget) (string, error) {
	if w.opts.Mode != ModeCopy {
		return "", nil
	}
	return w.Commit(target, func(tmp string) error {
		return copyFile(target.Path, tmp)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy file contents: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("failed to sync destination file: %w", err)
	}
	return out.Close()
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to reopen temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	return f.Close()
}
