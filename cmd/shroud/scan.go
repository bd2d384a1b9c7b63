// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"shroud/internal/config"
	"shroud/internal/gitsource"
	"shroud/internal/output"
	"shroud/internal/report"
	"shroud/internal/suppressions"
)

type scanFlags struct {
	configPath string
	profile    string
	mode       string
	outputDir  string
	recheck    bool
	workers    int
	format     string
	reportPath string
	dpi        int
	checks     []string
	gitURLs    []string
	showMatch  bool
	verbose    bool
	debug      bool
	noColor    bool
	ledgerPath string
	noLedger   bool
	rulesPath  string
	logFormat  string
}

func newScanCmd() *cobra.Command {
	f := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan [dirs...]",
		Short: "Scan directories and redact sensitive data",
		Long: `Scan walks each directory, extracts text from text files, images and PDFs,
detects sensitive data and writes redacted copies.

Exit codes: 0 nothing found, 1 findings redacted or flagged,
2 usage or configuration error, 3 some files failed or were skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.configPath, "config", "", "Configuration file (default: search shroud.yaml, then the user config dir)")
	flags.StringVar(&f.profile, "profile", "", "Named profile from the configuration")
	flags.StringVar(&f.mode, "mode", "", "Output mode: copy, in_place or report")
	flags.StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for redacted copies in copy mode")
	flags.BoolVar(&f.recheck, "recheck", false, "Recheck candidates with the hosted classifier")
	flags.IntVarP(&f.workers, "workers", "w", 0, "Files processed in parallel (default: CPUs, max 8)")
	flags.StringVarP(&f.format, "format", "f", "", "Report format: text, json, yaml or csv")
	flags.StringVar(&f.reportPath, "report", "", "Write the report to this file instead of stdout")
	flags.IntVar(&f.dpi, "dpi", 0, "PDF rasterization resolution")
	flags.StringSliceVar(&f.checks, "checks", nil, "Only run these categories (comma separated)")
	flags.StringSliceVar(&f.gitURLs, "git", nil, "Shallow-clone and scan this repository (repeatable)")
	flags.BoolVar(&f.showMatch, "show-match", false, "Show matched text in the report")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "List clean files in the report")
	flags.BoolVar(&f.debug, "debug", false, "Debug logging and per-file step traces")
	flags.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&f.ledgerPath, "ledger", "", "Scan history database path")
	flags.BoolVar(&f.noLedger, "no-ledger", false, "Do not record scan history")
	flags.StringVar(&f.rulesPath, "suppressions", "", "Suppression rules file")
	flags.StringVar(&f.logFormat, "log-format", "text", "Log format: text or json")

	return cmd
}

// loadConfig resolves file, profile and flags into a validated configuration
func loadConfig(cmd *cobra.Command, f *scanFlags, logger *slog.Logger) (*config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.LoadConfigOrDefault(f.configPath, logger)
	if err != nil {
		return nil, err
	}
	if f.profile != "" {
		if err := cfg.ApplyProfile(f.profile); err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("mode") {
		cfg.Output.Mode = f.mode
	}
	if changed("output-dir") {
		cfg.Output.OutputDir = f.outputDir
	}
	if changed("recheck") {
		cfg.Recheck.Enabled = f.recheck
	}
	if changed("workers") {
		cfg.Scan.Workers = f.workers
	}
	if changed("format") {
		cfg.Report.Format = f.format
	}
	if changed("report") {
		cfg.Report.Path = f.reportPath
	}
	if changed("dpi") {
		cfg.Engines.DPI = f.dpi
	}
	if changed("checks") {
		cfg.Checks = f.checks
	}
	if changed("show-match") {
		cfg.Report.ShowMatch = f.showMatch
	}
	if changed("ledger") {
		cfg.Ledger.Path = f.ledgerPath
	}
	if changed("suppressions") {
		cfg.Suppressions = f.rulesPath
	}
	if f.noLedger {
		cfg.Ledger.Path = ""
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runScan(cmd *cobra.Command, args []string, f *scanFlags) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()

	if f.noColor {
		color.NoColor = true
	}
	logger, err := newLogger(stderr, f.logFormat, f.debug)
	if err != nil {
		return usageError(err)
	}
	cfg, err := loadConfig(cmd, f, logger)
	if err != nil {
		return usageError(err)
	}

	roots := args
	if len(roots) == 0 {
		roots = cfg.Scan.Targets
	}
	roots = append([]string(nil), roots...)
	if len(f.gitURLs) > 0 && cfg.Output.Mode == string(output.ModeInPlace) {
		return exitError(report.ExitUsage, "--git cannot be combined with in_place mode: the clone is deleted after the scan")
	}
	for _, url := range f.gitURLs {
		dir, cleanup, err := cloneRepo(ctx, url)
		if err != nil {
			return usageError(err)
		}
		defer cleanup()
		roots = append(roots, dir)
	}
	if len(roots) == 0 {
		return exitError(report.ExitUsage, "no target directories: pass them as arguments, set scan.targets or %s", config.EnvTargetDirs)
	}

	eng, err := findEngines(cfg, logger)
	if err != nil {
		return usageError(err)
	}

	rules, err := suppressions.Load(cfg.Suppressions)
	if err != nil {
		return usageError(err)
	}

	runID := report.NewRunID()
	store := openLedger(cfg.Ledger.Path, logger)
	if store != nil {
		defer store.Close()
	}

	scanner, err := buildScanner(cfg, scanDeps{
		engines: eng,
		roots:   roots,
		runID:   runID,
		debug:   f.debug,
		trace:   stderr,
		logger:  logger,
		ledger:  store,
		rules:   rules,
	})
	if err != nil {
		return usageError(err)
	}

	sum, err := scanner.Run(ctx, roots)
	if err != nil {
		return usageError(err)
	}
	warnOpenBreaker(scanner.Pipeline.Rechecker, logger)

	if err := writeReport(cmd.OutOrStdout(), cfg, sum, f); err != nil {
		return exitError(report.ExitFailures, "writing report: %v", err)
	}
	if cfg.Report.Path != "" {
		color.New(color.FgGreen).Fprintf(stderr, "Report written to %s\n", cfg.Report.Path)
	}
	if sum.Interrupted {
		color.New(color.FgYellow).Fprintln(stderr, "Scan interrupted; remaining files were not processed")
	}

	if code := sum.ExitCode(); code != report.ExitClean {
		return &exitErr{code: code}
	}
	return nil
}

func cloneRepo(ctx context.Context, url string) (string, func(), error) {
	if err := gitsource.ValidateURL(url); err != nil {
		return "", nil, err
	}
	dir, cleanup, err := gitsource.Cloner{}.Clone(ctx, url)
	if err != nil {
		if errors.Is(err, gitsource.ErrGitUnavailable) {
			return "", nil, fmt.Errorf("--git needs the git binary: %w", err)
		}
		return "", nil, err
	}
	return dir, cleanup, nil
}

// writeReport renders the summary to the configured file or to stdout
func writeReport(stdout io.Writer, cfg *config.Config, sum *report.Summary, f *scanFlags) error {
	formatter, err := report.NewRegistry().Get(cfg.Report.Format)
	if err != nil {
		return err
	}
	opts := report.FormatterOptions{
		ShowMatch: cfg.Report.ShowMatch,
		Verbose:   f.verbose,
		NoColor:   true,
	}

	if cfg.Report.Path == "" {
		if file, ok := stdout.(*os.File); ok {
			opts.NoColor = !report.ColorEnabled(file, f.noColor)
		}
		return formatter.Format(stdout, sum, opts)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Report.Path), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(cfg.Report.Path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := formatter.Format(out, sum, opts); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
