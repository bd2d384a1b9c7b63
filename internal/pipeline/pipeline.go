// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pipeline runs extract, detect, recheck and redact for each target
// and fans targets out over a worker pool.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shroud/internal/detect"
	"shroud/internal/extract"
	"shroud/internal/faults"
	"shroud/internal/observability"
	"shroud/internal/output"
	"shroud/internal/recheck"
	"shroud/internal/redact"
	"shroud/internal/report"
	"shroud/internal/scan"
)

// Suppressor reports whether a finding is covered by a suppression rule
type Suppressor interface {
	Suppressed(category, fingerprint, rel string) bool
}

// Pipeline processes one target at a time. Components are shared between
// workers and must be safe for concurrent use.
type Pipeline struct {
	Extractors *extract.Registry
	Detector   *detect.Detector
	Rechecker  recheck.Rechecker // nil confirms every candidate
	Redactors  *redact.Registry
	Writer     *output.Writer

	// Suppressions rejects accepted false positives before the recheck
	Suppressions Suppressor

	// CopyUnchanged mirrors clean files in copy mode
	CopyUnchanged bool

	Observer *observability.Observer
	Logger   *slog.Logger
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Process runs every stage for target. Failures never escape: they are
// recorded on the returned result.
func (p *Pipeline) Process(ctx context.Context, target scan.ScanTarget) (res report.FileResult) {
	start := time.Now()
	res = report.FileResult{Target: target}
	step := p.Observer.Step("pipeline", "process", target.Path)
	defer func() {
		if r := recover(); r != nil {
			res.Fail(faults.New(faults.KindUnknown, "process", target.Path, fmt.Errorf("panic: %v", r)))
		}
		res.Duration = time.Since(start)
		step(res.Fault == nil, fmt.Sprintf("status=%s candidates=%d confirmed=%d", res.Status, res.Candidates, res.Confirmed))
	}()

	if err := ctx.Err(); err != nil {
		res.Fail(err)
		return res
	}

	finish := p.Observer.StartTiming("extract", "extract", target.Path)
	doc, err := p.Extractors.Extract(ctx, target)
	if err != nil {
		finish(false, observability.Stats{Err: err})
		res.Fail(contextOr(ctx, err))
		return res
	}
	defer doc.Close()
	finish(true, observability.Stats{Spans: len(doc.Spans), Pages: len(doc.Pages)})
	p.Observer.Metric("extract", "spans", len(doc.Spans))

	cands := p.Detector.Detect(doc)
	open, suppressed := p.suppress(target, cands)
	p.Observer.Detail("detect", fmt.Sprintf("%d candidates, %d suppressed", len(cands), suppressed))
	if len(open) > 0 && p.Rechecker != nil {
		finish = p.Observer.StartTiming("recheck", "recheck", target.Path)
		sub := make([]detect.Candidate, len(open))
		for i, idx := range open {
			sub[i] = cands[idx]
		}
		sub, failures := p.Rechecker.Recheck(ctx, doc, sub)
		for i, idx := range open {
			cands[idx] = sub[i]
		}
		for _, f := range failures {
			res.Failures = append(res.Failures, fmt.Sprintf("%s %s: %v", f.Candidate.Category, f.Candidate.Loc, f.Err))
		}
		finish(len(failures) == 0, observability.Stats{Candidates: len(sub)})
	} else {
		for _, idx := range open {
			cands[idx].Verdict = detect.Confirmed
		}
	}
	res.Count(cands)
	res.Suppressed = suppressed

	plan := redact.NewPlan(doc, cands)
	if plan.Empty() {
		res.Status = report.StatusClean
		if p.CopyUnchanged {
			dest, err := p.Writer.CopyUnchanged(target)
			if err != nil {
				res.Fail(err)
				return res
			}
			res.OutputPath = dest
		}
		return res
	}
	if p.Writer.Mode() == output.ModeReport {
		res.Status = report.StatusFlagged
		return res
	}

	red, err := p.Redactors.Get(target.Type)
	if err != nil {
		res.Fail(faults.New(faults.UnsupportedType, "redact", target.Path, err))
		return res
	}
	ext := ""
	if rw, ok := red.(redact.ExtensionRewriter); ok {
		ext = rw.OutputExt(target.Path)
	}

	finish = p.Observer.StartTiming("redact", observability.NameOf(red, "redactor"), target.Path)
	var applied *redact.Result
	dest, err := p.Writer.CommitExt(target, ext, func(tmp string) error {
		var rerr error
		applied, rerr = red.Redact(ctx, plan, tmp)
		return rerr
	})
	if err != nil {
		finish(false, observability.Stats{Err: err})
		res.Fail(contextOr(ctx, err))
		return res
	}
	finish(true, observability.Stats{Candidates: len(plan.Candidates), Pages: applied.PagesRewritten})
	p.Observer.Metric("redact", "redactions", len(applied.Redactions))

	res.Status = report.StatusRedacted
	res.OutputPath = dest
	res.AlreadyRedacted = applied.AlreadyRedacted
	p.logger().Debug("file redacted", "file", target.Path, "dest", dest,
		"redactions", len(applied.Redactions), "already_redacted", applied.AlreadyRedacted)
	return res
}

// suppress rejects candidates covered by a suppression rule and returns the
// indexes of the rest along with the number suppressed
func (p *Pipeline) suppress(target scan.ScanTarget, cands []detect.Candidate) ([]int, int) {
	open := make([]int, 0, len(cands))
	suppressed := 0
	for i, c := range cands {
		if p.Suppressions != nil && p.Suppressions.Suppressed(c.Category, report.Fingerprint(c.Category, c.Text), target.Rel) {
			cands[i].Verdict = detect.Rejected
			suppressed++
			continue
		}
		open = append(open, i)
	}
	return open, suppressed
}

// contextOr prefers the context error so cancelled files are not reported as
// unreadable or unwritable
func contextOr(ctx context.Context, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return err
}
