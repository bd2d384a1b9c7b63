// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// EnvConfigDir overrides the configuration directory on every platform
const EnvConfigDir = "SHROUD_CONFIG_DIR"

// ConfigDir returns the shroud configuration directory.
// Windows uses %APPDATA%\shroud, other platforms $XDG_CONFIG_HOME/shroud or ~/.config/shroud.
func ConfigDir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return filepath.Clean(dir)
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "shroud")
		}
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "shroud")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "shroud")
	}
	return filepath.Join(os.TempDir(), "shroud")
}

// ConfigFile returns the path to the main config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// SuppressionsFile returns the path to the suppression rules
func SuppressionsFile() string {
	return filepath.Join(ConfigDir(), "suppressions.yaml")
}

// Resolve returns the absolute, cleaned form of path. An empty path stays empty.
func Resolve(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}
