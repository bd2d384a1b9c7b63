// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shroud/internal/faults"
)

// clearEnv isolates a test from the caller's shroud environment
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvTesseractPath, EnvPopplerPath, EnvAPIKey, EnvGroqAPIKey, EnvRecheck, EnvTargetDirs} {
		t.Setenv(name, "")
	}
	t.Setenv("SHROUD_CONFIG_DIR", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "shroud.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "copy", cfg.Output.Mode)
	assert.Equal(t, "[REDACTED]", cfg.Output.Placeholder)
	assert.Equal(t, "text", cfg.Report.Format)
	assert.Equal(t, 300, cfg.Engines.DPI)
	assert.Equal(t, 10*time.Second, cfg.Recheck.Timeout)
	assert.Zero(t, cfg.Recheck.MaxRetries)
	assert.False(t, cfg.Recheck.Enabled)
	assert.Equal(t, filepath.Join(os.Getenv("SHROUD_CONFIG_DIR"), "history.db"), cfg.Ledger.Path)
	assert.Equal(t, filepath.Join(os.Getenv("SHROUD_CONFIG_DIR"), "suppressions.yaml"), cfg.Suppressions)
	assert.Equal(t, []string{"audit", "secrets"}, cfg.ListProfiles())
	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_FileKeepsUnsetDefaults(t *testing.T) {
	clearEnv(t)
	p := writeConfig(t, `
scan:
  targets: [docs, scans]
  workers: 2
recheck:
  timeout: 3s
  model: llama-3.1-8b-instant
output:
  mode: in_place
  backup_dir: /tmp/shroud-backups
checks: [SSN, EMAIL]
profiles:
  nightly:
    description: nightly sweep
    mode: report
    format: csv
`)
	cfg, err := LoadConfig(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"docs", "scans"}, cfg.Scan.Targets)
	assert.Equal(t, 2, cfg.Scan.Workers)
	assert.Equal(t, 3*time.Second, cfg.Recheck.Timeout)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.Recheck.Model)
	assert.Equal(t, 4, cfg.Recheck.MaxConcurrent, "unset keys keep defaults")
	assert.Equal(t, "in_place", cfg.Output.Mode)
	assert.Equal(t, "[REDACTED]", cfg.Output.Placeholder)
	assert.Equal(t, []string{"SSN", "EMAIL"}, cfg.Checks)
	assert.Equal(t, []string{"audit", "nightly", "secrets"}, cfg.ListProfiles())
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrConfiguration))

	_, err = LoadConfig(writeConfig(t, ":::invalid yaml:::"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, faults.ErrConfiguration))
}

func TestLoadConfigOrDefault(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfigOrDefault("", nil)
	require.NoError(t, err)
	assert.Equal(t, "copy", cfg.Output.Mode)

	require.NoError(t, os.WriteFile("shroud.yaml", []byte("output:\n  mode: report\n"), 0o600))
	assert.Equal(t, "shroud.yaml", FindConfigFile())
	cfg, err = LoadConfigOrDefault("", nil)
	require.NoError(t, err)
	assert.Equal(t, "report", cfg.Output.Mode)

	require.NoError(t, os.WriteFile("shroud.yaml", []byte(":::"), 0o600))
	var logs bytes.Buffer
	cfg, err = LoadConfigOrDefault("", slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err, "a broken discovered file falls back to defaults")
	assert.Equal(t, "copy", cfg.Output.Mode)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "file=shroud.yaml")
	assert.Contains(t, logs.String(), "err=")

	_, err = LoadConfigOrDefault("shroud.yaml", nil)
	assert.Error(t, err, "a broken named file is an error")
}

func TestApplyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTesseractPath, "/opt/tesseract/bin")
	t.Setenv(EnvPopplerPath, "/opt/poppler/bin")
	t.Setenv(EnvGroqAPIKey, "gsk-provider")
	t.Setenv(EnvRecheck, "true")
	t.Setenv(EnvTargetDirs, "a"+string(os.PathListSeparator)+" b "+string(os.PathListSeparator))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/tesseract/bin", cfg.Engines.TesseractPath)
	assert.Equal(t, "/opt/poppler/bin", cfg.Engines.PopplerPath)
	assert.Equal(t, "gsk-provider", cfg.Recheck.APIKey)
	assert.True(t, cfg.Recheck.Enabled)
	assert.Equal(t, []string{"a", "b"}, cfg.Scan.Targets)

	t.Setenv(EnvAPIKey, "shroud-key")
	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "shroud-key", cfg.Recheck.APIKey)

	t.Setenv(EnvRecheck, "sometimes")
	_, err = LoadConfig("")
	assert.True(t, errors.Is(err, faults.ErrConfiguration))
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	p := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(p, []byte("SHROUD_API_KEY=from-dotenv\n"), 0o600))
	// godotenv never overrides a variable that is already set
	require.NoError(t, os.Unsetenv(EnvAPIKey))

	LoadDotEnv(p)
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Recheck.APIKey)
}

func TestApplyProfile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	require.NoError(t, cfg.ApplyProfile("audit"))
	assert.Equal(t, "report", cfg.Output.Mode)
	assert.Equal(t, "json", cfg.Report.Format)

	require.NoError(t, cfg.ApplyProfile("secrets"))
	assert.Equal(t, []string{"API_KEY", "PRIVATE_KEY", "SSH_KEY", "PASSWORD"}, cfg.Checks)
	assert.True(t, cfg.Report.ShowMatch)

	err = cfg.ApplyProfile("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit, secrets")
}

func TestValidateConfig(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad mode", func(c *Config) { c.Output.Mode = "shred" }, "unknown output mode"},
		{"copy without dir", func(c *Config) { c.Output.OutputDir = " " }, "output_dir is required"},
		{"recheck without key", func(c *Config) { c.Recheck.Enabled = true }, "no API key"},
		{"missing engine", func(c *Config) { c.Engines.TesseractPath = "/no/such/tesseract" }, "engines.tesseract_path"},
		{"negative workers", func(c *Config) { c.Scan.Workers = -1 }, "scan.workers"},
		{"unknown format", func(c *Config) { c.Report.Format = "xlsx" }, "xlsx"},
		{"unknown check", func(c *Config) { c.Checks = []string{"DNA"} }, "DNA"},
		{"jpeg quality", func(c *Config) { c.Output.JPEGQuality = 101 }, "jpeg_quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, faults.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Default()
	cfg.Recheck.Enabled = true
	cfg.Recheck.APIKey = "k"
	cfg.Output.Mode = "report"
	cfg.Output.OutputDir = ""
	assert.NoError(t, ValidateConfig(cfg))
	assert.Error(t, ValidateConfig(nil))
}

func TestYAMLMasksAPIKey(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Recheck.APIKey = "gsk-secret"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "gsk-secret")
	assert.Contains(t, string(out), "****")
	assert.Contains(t, string(out), "timeout: 10s")
	assert.Equal(t, "gsk-secret", cfg.Recheck.APIKey, "masking works on a copy")
}
