// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"shroud/internal/faults"
)

// Environment variables that override the file
const (
	EnvTesseractPath = "SHROUD_TESSERACT_PATH"
	EnvPopplerPath   = "SHROUD_POPPLER_PATH"
	EnvAPIKey        = "SHROUD_API_KEY"
	EnvGroqAPIKey    = "GROQ_API_KEY"
	EnvRecheck       = "SHROUD_RECHECK"
	EnvTargetDirs    = "SHROUD_TARGET_DIRS"
)

// LoadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv(files ...string) {
	// Best-effort: a missing .env is the common case
	_ = godotenv.Load(files...)
}

// ApplyEnv overlays environment variables onto cfg
func ApplyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvTesseractPath)); v != "" {
		cfg.Engines.TesseractPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPopplerPath)); v != "" {
		cfg.Engines.PopplerPath = v
	}

	// SHROUD_API_KEY takes precedence over the provider variable
	for _, name := range []string{EnvAPIKey, EnvGroqAPIKey} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			cfg.Recheck.APIKey = v
			break
		}
	}

	if raw := strings.TrimSpace(os.Getenv(EnvRecheck)); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return faults.Configf("%s: invalid boolean %q", EnvRecheck, raw)
		}
		cfg.Recheck.Enabled = enabled
	}

	if raw := os.Getenv(EnvTargetDirs); strings.TrimSpace(raw) != "" {
		var dirs []string
		for _, d := range filepath.SplitList(raw) {
			if d = strings.TrimSpace(d); d != "" {
				dirs = append(dirs, d)
			}
		}
		cfg.Scan.Targets = dirs
	}
	return nil
}
