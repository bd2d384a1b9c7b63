// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"shroud/internal/faults"
	"shroud/internal/ledger"
	"shroud/internal/report"
	"shroud/internal/scan"
	"shroud/internal/walker"
)

// Scanner walks roots and drives the pipeline across a worker pool
type Scanner struct {
	Pipeline *Pipeline
	Walk     walker.Options // Roots is filled by Run
	Workers  int
	Mode     string
	RunID    string

	// Ledger records history when set
	Ledger *ledger.Store

	// Log receives every result as it completes. Nil creates one per run.
	Log *report.Log

	Logger *slog.Logger
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Run scans roots and returns the summary. Per-file failures are recorded in
// the summary; only configuration failures return an error. A cancelled ctx
// stops submitting files and marks the summary interrupted.
func (s *Scanner) Run(ctx context.Context, roots []string) (*report.Summary, error) {
	if s.Pipeline == nil {
		return nil, faults.New(faults.Configuration, "scan", "", errors.New("no pipeline configured"))
	}
	if len(roots) == 0 {
		return nil, faults.New(faults.Configuration, "scan", "", errors.New("no target directories"))
	}
	log := s.Log
	if log == nil {
		log = report.NewLog()
	}
	sum := report.NewSummary(s.RunID, roots, s.Mode)
	logger := s.logger().With("run_id", sum.RunID)

	store := s.Ledger
	if store != nil {
		if err := store.BeginRun(ctx, sum); err != nil {
			logger.Warn("ledger disabled for this run", "error", err)
			store = nil
		}
	}

	pool := NewWorkerPool(s.Workers, s.Pipeline.Process)
	pool.Start(ctx)
	logger.Info("scan started", "roots", roots, "workers", pool.Workers(), "mode", s.Mode)

	// single collector: the only writer to the log, ledger and collected slice
	collected := make(chan []Result)
	go func() {
		var all []Result
		for r := range pool.Results() {
			log.Append(r.Result)
			if store != nil {
				// the ledger outlives a cancelled scan
				if err := store.Append(context.WithoutCancel(ctx), sum.RunID, r.Result); err != nil {
					logger.Warn("ledger append failed", "file", r.Result.Target.Path, "error", err)
				}
			}
			logResult(logger, r.Result)
			all = append(all, r)
		}
		collected <- all
	}()

	opts := s.Walk
	opts.Roots = roots
	seq := 0
	for target, err := range walker.New(opts).Targets(ctx) {
		seq++
		if err != nil {
			pool.Emit(Result{Seq: seq, Result: walkFault(err)})
			continue
		}
		if !pool.Submit(ctx, Job{Seq: seq, Target: target}) {
			break
		}
	}
	pool.Close()
	results := <-collected

	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })
	for _, r := range results {
		sum.Add(r.Result)
	}
	sum.Interrupted = ctx.Err() != nil
	sum.Finish()

	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(ctx), sum); err != nil {
			logger.Warn("ledger finish failed", "error", err)
		}
	}
	logger.Info("scan finished",
		"files", sum.Files, "redacted", sum.Redacted, "flagged", sum.Flagged,
		"skipped", sum.Skipped, "failed", sum.Failed, "interrupted", sum.Interrupted,
		"duration_ms", sum.Duration().Milliseconds())
	return sum, nil
}

func walkFault(err error) report.FileResult {
	r := report.FileResult{}
	var fe *faults.Error
	if errors.As(err, &fe) {
		r.Target = scan.ScanTarget{Path: fe.Path}
	}
	r.Fail(err)
	return r
}

func logResult(logger *slog.Logger, r report.FileResult) {
	attrs := []any{"file", r.Target.Path, "status", string(r.Status), "confirmed", r.Confirmed, "duration_ms", r.Duration.Milliseconds()}
	switch r.Status {
	case report.StatusFailed, report.StatusSkipped:
		logger.Warn("file not processed", append(attrs, "error", r.Fault)...)
	default:
		logger.Debug("file processed", attrs...)
	}
}
