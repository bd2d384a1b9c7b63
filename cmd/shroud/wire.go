// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"shroud/internal/config"
	"shroud/internal/detect"
	"shroud/internal/extract"
	"shroud/internal/faults"
	"shroud/internal/ledger"
	"shroud/internal/observability"
	"shroud/internal/ocr"
	"shroud/internal/output"
	"shroud/internal/pipeline"
	"shroud/internal/raster"
	"shroud/internal/recheck"
	"shroud/internal/redact"
	"shroud/internal/redact/imageredact"
	"shroud/internal/redact/pdfredact"
	"shroud/internal/redact/textredact"
	"shroud/internal/resilience"
	"shroud/internal/scan"
	"shroud/internal/suppressions"
	"shroud/internal/walker"
)

// engines holds whichever native engines could be found. Nil fields are missing.
type engines struct {
	ocr    ocr.Engine
	raster raster.Rasterizer
}

// findEngines resolves Tesseract and pdftoppm. A missing engine is a warning
// unless engines.required is set, in which case it aborts the run.
func findEngines(cfg *config.Config, logger *slog.Logger) (engines, error) {
	var found engines

	tess, err := ocr.NewTesseract(ocr.TesseractOptions{
		Path:          cfg.Engines.TesseractPath,
		Language:      cfg.Engines.TesseractLang,
		DPI:           cfg.Engines.DPI,
		ExtraArgs:     cfg.Engines.TesseractArgs,
		MinConfidence: cfg.Engines.MinWordConfidence,
	})
	switch {
	case err == nil:
		found.ocr = tess
	case cfg.Engines.Required:
		return engines{}, faults.New(faults.Configuration, "engines", cfg.Engines.TesseractPath, err)
	default:
		logger.Warn("tesseract not found, images and PDFs will be skipped", "err", err)
	}

	pop, err := raster.NewPoppler(cfg.Engines.PopplerPath)
	switch {
	case err == nil:
		found.raster = pop
	case cfg.Engines.Required:
		return engines{}, faults.New(faults.Configuration, "engines", cfg.Engines.PopplerPath, err)
	default:
		logger.Warn("pdftoppm not found, PDFs will be skipped", "err", err)
	}
	return found, nil
}

// newRechecker returns nil when recheck is disabled
func newRechecker(cfg *config.Config, logger *slog.Logger) recheck.Rechecker {
	if !cfg.Recheck.Enabled {
		return nil
	}
	client := recheck.NewGroqClient(cfg.Recheck.Endpoint, cfg.Recheck.Model, cfg.Recheck.APIKey, nil)
	return recheck.NewRemote(client, recheck.Options{
		Timeout:         cfg.Recheck.Timeout,
		MaxRetries:      cfg.Recheck.MaxRetries,
		ContextChars:    cfg.Recheck.ContextChars,
		MaxConcurrent:   cfg.Recheck.MaxConcurrent,
		MinConfidence:   cfg.Recheck.MinConfidence,
		BreakerFailures: cfg.Recheck.BreakerFailures,
		Logger:          logger,
	})
}

func newExtractors(cfg *config.Config, eng engines) *extract.Registry {
	reg := extract.NewRegistry()
	reg.Register(scan.PlainText, extract.TextExtractor{})
	reg.Register(scan.StructuredText, extract.StructuredExtractor{MaxBytes: cfg.Scan.MaxTextBytes})
	reg.Register(scan.Image, extract.ImageExtractor{Engine: eng.ocr})
	reg.Register(scan.PDF, extract.PDFExtractor{Rasterizer: eng.raster, Engine: eng.ocr, DPI: cfg.Engines.DPI})
	return reg
}

func newRedactors(cfg *config.Config) *redact.Registry {
	reg := redact.NewRegistry()
	text := textredact.New(cfg.Output.Placeholder)
	reg.Register(scan.PlainText, text)
	reg.Register(scan.StructuredText, text)
	reg.Register(scan.Image, imageredact.New(cfg.Output.BoxPadding, cfg.Output.JPEGQuality))
	reg.Register(scan.PDF, pdfredact.New(cfg.Output.BoxPadding))
	return reg
}

// newObserver times stages at debug level and prints step trees to w
func newObserver(debug bool, w io.Writer, logger *slog.Logger, runID string) *observability.Observer {
	obs := observability.New(observability.LevelMetrics, logger, runID)
	if debug {
		obs.AttachDebug(w)
	}
	return obs
}

// warnOpenBreaker notes a classifier breaker left open at the end of a run:
// later files in that run kept their candidates without a recheck.
func warnOpenBreaker(rc recheck.Rechecker, logger *slog.Logger) {
	remote, ok := rc.(*recheck.Remote)
	if !ok {
		return
	}
	if state := remote.BreakerState(); state != resilience.StateClosed {
		logger.Warn("classifier unavailable at end of run, candidates were kept unchecked", "breaker", state.String())
	}
}

// openLedger opens the history store. Failures only cost history, so they are logged.
func openLedger(path string, logger *slog.Logger) *ledger.Store {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		logger.Warn("ledger disabled", "path", path, "err", err)
		return nil
	}
	store, err := ledger.Open(path)
	if err != nil {
		logger.Warn("ledger disabled", "path", path, "err", err)
		return nil
	}
	return store
}

// scanDeps are the pieces buildScanner needs beyond the configuration
type scanDeps struct {
	engines engines
	roots   []string
	runID   string
	debug   bool
	trace   io.Writer
	logger  *slog.Logger
	ledger  *ledger.Store
	rules   *suppressions.Manager
}

// buildScanner wires every component from a validated configuration
func buildScanner(cfg *config.Config, d scanDeps) (*pipeline.Scanner, error) {
	det, err := detect.Default().Filter(cfg.Checks)
	if err != nil {
		return nil, faults.New(faults.Configuration, "config", "", err)
	}
	mode, err := output.ParseMode(cfg.Output.Mode)
	if err != nil {
		return nil, faults.New(faults.Configuration, "config", "", err)
	}
	w, err := output.NewWriter(output.Options{
		Mode:      mode,
		OutputDir: cfg.Output.OutputDir,
		BackupDir: cfg.Output.BackupDir,
		NestRoots: len(d.roots) > 1,
		Roots:     d.roots,
		Logger:    d.logger,
	})
	if err != nil {
		return nil, err
	}

	workers := cfg.Scan.Workers
	if workers <= 0 {
		workers = pipeline.DefaultWorkers()
	}

	p := &pipeline.Pipeline{
		Extractors:    newExtractors(cfg, d.engines),
		Detector:      det,
		Redactors:     newRedactors(cfg),
		Writer:        w,
		CopyUnchanged: cfg.Output.CopyUnchanged,
		Observer:      newObserver(d.debug, d.trace, d.logger, d.runID),
		Logger:        d.logger,
	}
	if rc := newRechecker(cfg, d.logger); rc != nil {
		p.Rechecker = rc
	}
	if d.rules != nil {
		p.Suppressions = d.rules
	}

	return &pipeline.Scanner{
		Pipeline: p,
		Walk: walker.Options{
			Extensions:         cfg.Scan.Extensions,
			Exclude:            cfg.Scan.Exclude,
			SkipDirs:           w.Excluded(),
			FollowFileSymlinks: cfg.Scan.FollowFileSymlinks,
			MaxFileSize:        cfg.Scan.MaxFileSize,
		},
		Workers: workers,
		Mode:    string(mode),
		RunID:   d.runID,
		Ledger:  d.ledger,
		Logger:  d.logger,
	}, nil
}
