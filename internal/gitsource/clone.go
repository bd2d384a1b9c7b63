// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package gitsource turns remote repositories into local scan roots.
package gitsource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"

	"shroud/internal/paths"
)

// ErrGitUnavailable means no git binary could be found
var ErrGitUnavailable = errors.New("git not available")

// Cloner shallow-clones repositories with the git binary
type Cloner struct {
	Binary  string // empty searches PATH
	TempDir string
}

// ValidateURL accepts https, ssh, git and file URLs plus scp-like git@host:path
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("empty repository URL")
	}
	if strings.HasPrefix(raw, "-") {
		return fmt.Errorf("invalid repository URL %q", raw)
	}
	if strings.HasPrefix(raw, "git@") && strings.Contains(raw, ":") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid repository URL %q: %w", raw, err)
	}
	switch u.Scheme {
	case "https", "http", "ssh", "git", "file":
		return nil
	default:
		return fmt.Errorf("unsupported repository URL scheme %q", u.Scheme)
	}
}

// Clone fetches the default branch at depth 1 into a new temp directory.
// cleanup removes the directory and is always safe to call.
func (c Cloner) Clone(ctx context.Context, repoURL string) (dir string, cleanup func(), err error) {
	cleanup = func() {}
	if err := ValidateURL(repoURL); err != nil {
		return "", cleanup, err
	}
	bin, err := paths.Binary(c.Binary, "git")
	if err != nil {
		return "", cleanup, fmt.Errorf("%w: %v", ErrGitUnavailable, err)
	}
	dir, err = os.MkdirTemp(c.TempDir, "shroud-git-*")
	if err != nil {
		return "", cleanup, err
	}
	cleanup = func() { os.RemoveAll(dir) }

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "clone", "--depth", "1", "--quiet", "--", repoURL, dir)
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	if err := cmd.Run(); err != nil {
		cleanup()
		if ctx.Err() != nil {
			return "", func() {}, ctx.Err()
		}
		return "", func() {}, fmt.Errorf("git clone %s failed: %v: %s", repoURL, err, strings.TrimSpace(stderr.String()))
	}
	return dir, cleanup, nil
}
