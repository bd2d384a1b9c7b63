// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// ErrBinaryNotFound is returned when an external executable cannot be located
var ErrBinaryNotFound = errors.New("binary not found")

// Binary finds an executable from a configured file or directory,
// falling back to PATH lookup.
func Binary(configured, name string) (string, error) {
	exe := name
	if runtime.GOOS == "windows" {
		exe += ".exe"
	}
	if configured != "" {
		info, err := os.Stat(configured)
		if err != nil {
			return "", fmt.Errorf("%w: configured path %s: %v", ErrBinaryNotFound, configured, err)
		}
		if info.IsDir() {
			candidate := filepath.Join(configured, exe)
			if _, err := os.Stat(candidate); err != nil {
				return "", fmt.Errorf("%w: %s not found in %s", ErrBinaryNotFound, exe, configured)
			}
			return candidate, nil
		}
		return configured, nil
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s not on PATH", ErrBinaryNotFound, name)
	}
	return bin, nil
}
