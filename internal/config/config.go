// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"shroud/internal/detect"
	"shroud/internal/faults"
	"shroud/internal/output"
	"shroud/internal/paths"
	"shroud/internal/raster"
	"shroud/internal/redact"
	"shroud/internal/report"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Scan    ScanConfig    `yaml:"scan"`
	Engines EnginesConfig `yaml:"engines"`
	Recheck RecheckConfig `yaml:"recheck"`
	Output  OutputConfig  `yaml:"output"`
	Report  ReportConfig  `yaml:"report"`
	Ledger  LedgerConfig  `yaml:"ledger"`

	// Suppressions is the rule file for accepted false positives. Empty disables it.
	Suppressions string `yaml:"suppressions"`

	// Checks restricts detection to these categories. Empty means all.
	Checks []string `yaml:"checks"`

	// Profiles for different scanning scenarios
	Profiles map[string]Profile `yaml:"profiles,omitempty"`
}

// ScanConfig selects what gets walked
type ScanConfig struct {
	Targets            []string `yaml:"targets"`
	Exclude            []string `yaml:"exclude"`
	Extensions         []string `yaml:"extensions,omitempty"`
	Workers            int      `yaml:"workers"`
	MaxTextBytes       int64    `yaml:"max_text_bytes"`
	MaxFileSize        int64    `yaml:"max_file_size"`
	FollowFileSymlinks bool     `yaml:"follow_file_symlinks"`
}

// EnginesConfig locates the OCR and rasterizer binaries
type EnginesConfig struct {
	TesseractPath     string  `yaml:"tesseract_path"`
	TesseractLang     string  `yaml:"tesseract_lang"`
	TesseractArgs     string  `yaml:"tesseract_args"`
	PopplerPath       string  `yaml:"poppler_path"`
	DPI               int     `yaml:"dpi"`
	MinWordConfidence float64 `yaml:"min_word_confidence"`

	// Required aborts the run when an engine is missing instead of skipping images and PDFs
	Required bool `yaml:"required"`
}

// RecheckConfig configures the hosted classifier
type RecheckConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Endpoint        string        `yaml:"endpoint"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key,omitempty"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	ContextChars    int           `yaml:"context_chars"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
	MinConfidence   float64       `yaml:"min_confidence"`
	BreakerFailures int           `yaml:"breaker_failures"`
}

// OutputConfig controls where redacted artifacts go
type OutputConfig struct {
	Mode          string `yaml:"mode"`
	OutputDir     string `yaml:"output_dir"`
	Placeholder   string `yaml:"placeholder"`
	BackupDir     string `yaml:"backup_dir"`
	CopyUnchanged bool   `yaml:"copy_unchanged"`
	BoxPadding    int    `yaml:"box_padding"`
	JPEGQuality   int    `yaml:"jpeg_quality"`
}

// ReportConfig controls the run report
type ReportConfig struct {
	Format    string `yaml:"format"`
	Path      string `yaml:"path"`
	ShowMatch bool   `yaml:"show_match"`
}

// LedgerConfig locates the scan history database. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// Profile overrides part of the configuration for one scanning scenario.
// Zero values leave the base configuration alone.
type Profile struct {
	Description string   `yaml:"description"`
	Mode        string   `yaml:"mode,omitempty"`
	OutputDir   string   `yaml:"output_dir,omitempty"`
	Format      string   `yaml:"format,omitempty"`
	Checks      []string `yaml:"checks,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
	Workers     int      `yaml:"workers,omitempty"`
	Recheck     *bool    `yaml:"recheck,omitempty"`
	ShowMatch   *bool    `yaml:"show_match,omitempty"`
}

// Default returns the configuration used when no file is found
func Default() *Config {
	cfg := &Config{Profiles: defaultProfiles()}

	cfg.Scan.Exclude = []string{".git", "node_modules"}
	cfg.Scan.MaxTextBytes = 32 * 1024 * 1024
	cfg.Scan.MaxFileSize = 100 * 1024 * 1024

	cfg.Engines.TesseractLang = "eng"
	cfg.Engines.DPI = raster.DefaultDPI

	cfg.Recheck.Timeout = 10 * time.Second
	cfg.Recheck.ContextChars = 80
	cfg.Recheck.MaxConcurrent = 4
	cfg.Recheck.BreakerFailures = 5

	cfg.Output.Mode = string(output.ModeCopy)
	cfg.Output.OutputDir = "./redacted"
	cfg.Output.Placeholder = redact.DefaultPlaceholder
	cfg.Output.BoxPadding = 4
	cfg.Output.JPEGQuality = 95

	cfg.Report.Format = "text"
	cfg.Ledger.Path = filepath.Join(paths.ConfigDir(), "history.db")
	cfg.Suppressions = paths.SuppressionsFile()
	return cfg
}

func defaultProfiles() map[string]Profile {
	yes := true
	return map[string]Profile{
		"audit": {
			Description: "Report findings without writing any files",
			Mode:        string(output.ModeReport),
			Format:      "json",
		},
		"secrets": {
			Description: "Credentials and keys only",
			Checks:      []string{"API_KEY", "PRIVATE_KEY", "SSH_KEY", "PASSWORD"},
			ShowMatch:   &yes,
		},
	}
}

// LoadConfig loads configuration from the specified file path on top of the
// defaults, then applies environment overrides. An empty path skips the file.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(filepath.Clean(configPath))
		if err != nil {
			return nil, faults.New(faults.Configuration, "config", configPath, fmt.Errorf("error reading config file: %w", err))
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, faults.New(faults.Configuration, "config", configPath, fmt.Errorf("error parsing config file: %w", err))
		}
		if cfg.Profiles == nil {
			cfg.Profiles = make(map[string]Profile)
		}
		for name, p := range defaultProfiles() {
			if _, ok := cfg.Profiles[name]; !ok {
				cfg.Profiles[name] = p
			}
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindConfigFile looks for a configuration file in the working directory, then
// the user config directory. Returns "" when none exists.
func FindConfigFile() string {
	for _, name := range []string{"shroud.yaml", "shroud.yml", ".shroud.yaml", ".shroud.yml"} {
		if fileExists(name) {
			return name
		}
	}
	if standard := paths.ConfigFile(); fileExists(standard) {
		return standard
	}
	return ""
}

// LoadConfigOrDefault loads configFile, or the file FindConfigFile reports
// when configFile is empty. A named file that fails to load is an error. A
// discovered one that fails is logged as a warning and defaults are used.
func LoadConfigOrDefault(configFile string, logger *slog.Logger) (*Config, error) {
	if configFile != "" {
		return LoadConfig(configFile)
	}
	found := FindConfigFile()
	cfg, err := LoadConfig(found)
	if err != nil && found != "" {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("ignoring unreadable configuration file, using defaults", "file", found, "err", err)
		return LoadConfig("")
	}
	return cfg, err
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ListProfiles returns the available profile names, sorted
func (c *Config) ListProfiles() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetProfile returns a profile by name, or nil if not found
func (c *Config) GetProfile(name string) *Profile {
	if profile, exists := c.Profiles[name]; exists {
		return &profile
	}
	return nil
}

// ApplyProfile merges the named profile into the configuration
func (c *Config) ApplyProfile(name string) error {
	p := c.GetProfile(name)
	if p == nil {
		return faults.Configf("unknown profile %q (available: %s)", name, strings.Join(c.ListProfiles(), ", "))
	}
	if p.Mode != "" {
		c.Output.Mode = p.Mode
	}
	if p.OutputDir != "" {
		c.Output.OutputDir = p.OutputDir
	}
	if p.Format != "" {
		c.Report.Format = p.Format
	}
	if len(p.Checks) > 0 {
		c.Checks = append([]string(nil), p.Checks...)
	}
	if len(p.Exclude) > 0 {
		c.Scan.Exclude = append(append([]string(nil), c.Scan.Exclude...), p.Exclude...)
	}
	if p.Workers > 0 {
		c.Scan.Workers = p.Workers
	}
	if p.Recheck != nil {
		c.Recheck.Enabled = *p.Recheck
	}
	if p.ShowMatch != nil {
		c.Report.ShowMatch = *p.ShowMatch
	}
	return nil
}

// Masked returns a copy safe to print with the API key hidden
func (c *Config) Masked() *Config {
	cp := *c
	if cp.Recheck.APIKey != "" {
		cp.Recheck.APIKey = "****"
	}
	return &cp
}

// YAML renders the masked configuration
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.Masked())
}

// ValidateConfig checks the settings a run cannot start without. Every
// problem found is reported in one Configuration fault.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return faults.Configf("configuration cannot be nil")
	}
	var errs []error

	mode, err := output.ParseMode(cfg.Output.Mode)
	if err != nil {
		errs = append(errs, err)
	}
	if mode == output.ModeCopy && strings.TrimSpace(cfg.Output.OutputDir) == "" {
		errs = append(errs, errors.New("output.output_dir is required in copy mode"))
	}
	if cfg.Recheck.Enabled && strings.TrimSpace(cfg.Recheck.APIKey) == "" {
		errs = append(errs, errors.New("recheck is enabled but no API key is set (GROQ_API_KEY or SHROUD_API_KEY)"))
	}
	if cfg.Scan.Workers < 0 {
		errs = append(errs, fmt.Errorf("scan.workers must not be negative (got %d)", cfg.Scan.Workers))
	}
	if cfg.Engines.DPI < 0 {
		errs = append(errs, fmt.Errorf("engines.dpi must not be negative (got %d)", cfg.Engines.DPI))
	}
	if cfg.Recheck.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("recheck.max_retries must not be negative (got %d)", cfg.Recheck.MaxRetries))
	}
	if q := cfg.Output.JPEGQuality; q < 0 || q > 100 {
		errs = append(errs, fmt.Errorf("output.jpeg_quality must be within 0-100 (got %d)", q))
	}
	for _, p := range []struct{ key, path string }{
		{"engines.tesseract_path", cfg.Engines.TesseractPath},
		{"engines.poppler_path", cfg.Engines.PopplerPath},
	} {
		if p.path == "" {
			continue
		}
		if _, err := os.Stat(p.path); err != nil {
			errs = append(errs, fmt.Errorf("%s %q does not exist", p.key, p.path))
		}
	}
	if _, err := report.NewRegistry().Get(cfg.Report.Format); err != nil {
		errs = append(errs, err)
	}
	if len(cfg.Checks) > 0 {
		if _, err := detect.Default().Filter(cfg.Checks); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return faults.New(faults.Configuration, "config", "", errors.Join(errs...))
	}
	return nil
}
