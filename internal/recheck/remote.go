// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package recheck

import (
	"context"
	"log/slog"
	"time"

	"shroud/internal/detect"
	"shroud/internal/extract"
	"shroud/internal/faults"
	"shroud/internal/resilience"
)

// Options tunes the remote rechecker
type Options struct {
	// Timeout bounds each classifier call. Default 10s.
	Timeout time.Duration

	// MaxRetries is the number of retries after a failed call. Default 0.
	MaxRetries int

	// ContextChars is the bytes of surrounding span text sent on each side. Default 80.
	ContextChars int

	// MaxConcurrent caps in-flight calls across all workers. Default 4.
	MaxConcurrent int

	// MinConfidence rejects confirmed candidates whose detector confidence is lower. 0 disables.
	MinConfidence float64

	// BreakerFailures consecutive failures open the circuit breaker. Default 5.
	BreakerFailures int

	// BreakerCooldown is how long the breaker stays open. Default 30s.
	BreakerCooldown time.Duration

	Logger *slog.Logger
}

// Remote rechecks candidates one by one against a Classifier
type Remote struct {
	classifier Classifier
	opts       Options
	sem        chan struct{}
	breaker    *resilience.Breaker
	backoff    resilience.Backoff
	logger     *slog.Logger
}

// NewRemote creates a remote rechecker. A single Remote is shared by every worker.
func NewRemote(classifier Classifier, opts Options) *Remote {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ContextChars <= 0 {
		opts.ContextChars = 80
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "recheck")

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:      "classifier",
		Threshold: opts.BreakerFailures,
		Cooldown:  opts.BreakerCooldown,
		OnTransition: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	backoff := resilience.ClassifierBackoff(opts.MaxRetries)
	backoff.OnRetry = func(retry int, err error) {
		logger.Debug("retrying classifier call", "retry", retry, "class", resilience.Classify(err).String(), "err", err)
	}

	return &Remote{
		classifier: classifier,
		opts:       opts,
		sem:        make(chan struct{}, opts.MaxConcurrent),
		breaker:    breaker,
		backoff:    backoff,
		logger:     logger,
	}
}

// Recheck implements Rechecker. Candidates are checked in order; after
// cancellation the remaining candidates fail open without further calls.
func (r *Remote) Recheck(ctx context.Context, doc *extract.Document, cands []detect.Candidate) ([]detect.Candidate, []Failure) {
	out := make([]detect.Candidate, len(cands))
	var failures []Failure
	for i, c := range cands {
		verdict, err := r.check(ctx, doc, c)
		if err != nil {
			c.Verdict = detect.FailOpen
			failures = append(failures, Failure{
				Candidate: c,
				Err:       faults.New(faults.RecheckUnavailable, "recheck", doc.Target.Path, err),
			})
			r.logger.Warn("recheck failed, keeping candidate",
				"file", doc.Target.Path, "category", c.Category, "err", err)
		} else {
			c.Verdict = verdict
		}
		out[i] = c
	}
	return out, failures
}

func (r *Remote) check(ctx context.Context, doc *extract.Document, c detect.Candidate) (detect.Verdict, error) {
	if err := ctx.Err(); err != nil {
		return detect.FailOpen, err
	}
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return detect.FailOpen, ctx.Err()
	}
	defer func() { <-r.sem }()

	q := Query{
		Category: c.Category,
		Text:     c.Text,
		Context:  detect.ContextWindow(doc, c, r.opts.ContextChars),
	}
	confirmed, err := resilience.Call(ctx, r.backoff, r.breaker, func(ctx context.Context) (bool, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
		return r.classifier.Classify(callCtx, q)
	})
	if err != nil {
		return detect.FailOpen, err
	}
	if !confirmed {
		return detect.Rejected, nil
	}
	if r.opts.MinConfidence > 0 && c.Confidence < r.opts.MinConfidence {
		return detect.Rejected, nil
	}
	return detect.Confirmed, nil
}

// BreakerState reports the circuit breaker state for diagnostics
func (r *Remote) BreakerState() resilience.State {
	return r.breaker.State()
}
