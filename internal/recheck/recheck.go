// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package recheck asks a remote classifier to confirm or reject detector
// candidates. Any failure keeps the candidate (fail-open).
package recheck

import (
	"context"

	"shroud/internal/detect"
	"shroud/internal/extract"
)

// Failure records a candidate that could not be rechecked
type Failure struct {
	Candidate detect.Candidate
	Err       error
}

// Rechecker sets verdicts on candidates. The returned slice has the same
// length and order as the input; spans are never modified.
type Rechecker interface {
	Recheck(ctx context.Context, doc *extract.Document, cands []detect.Candidate) ([]detect.Candidate, []Failure)
}

// Passthrough confirms every candidate. Used when rechecking is disabled.
type Passthrough struct{}

// Recheck implements Rechecker
func (Passthrough) Recheck(_ context.Context, _ *extract.Document, cands []detect.Candidate) ([]detect.Candidate, []Failure) {
	out := make([]detect.Candidate, len(cands))
	for i, c := range cands {
		c.Verdict = detect.Confirmed
		out[i] = c
	}
	return out, nil
}

// Query is one classification request
type Query struct {
	Category string
	Text     string
	Context  string
}

// Classifier answers whether a query is real sensitive data
type Classifier interface {
	Classify(ctx context.Context, q Query) (bool, error)
}
