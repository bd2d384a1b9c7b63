// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"time"

	"github.com/google/uuid"
)

// Exit codes returned by the CLI
const (
	ExitClean    = 0
	ExitFindings = 1
	ExitUsage    = 2
	ExitFailures = 3
)

// Summary aggregates one run
type Summary struct {
	RunID       string
	Roots       []string
	Mode        string
	StartedAt   time.Time
	FinishedAt  time.Time
	Interrupted bool

	Files           int
	Redacted        int
	Flagged         int
	Clean           int
	Skipped         int
	Failed          int
	Candidates      int
	Confirmed       int
	Rejected        int
	Suppressed      int
	FailOpen        int
	AlreadyRedacted int

	Results []FileResult
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// NewSummary starts a summary for a run
func NewSummary(runID string, roots []string, mode string) *Summary {
	if runID == "" {
		runID = NewRunID()
	}
	return &Summary{RunID: runID, Roots: roots, Mode: mode, StartedAt: time.Now()}
}

// Add folds one result into the totals
func (s *Summary) Add(r FileResult) {
	s.Files++
	switch r.Status {
	case StatusRedacted:
		s.Redacted++
	case StatusFlagged:
		s.Flagged++
	case StatusClean:
		s.Clean++
	case StatusSkipped:
		s.Skipped++
	case StatusFailed:
		s.Failed++
	}
	s.Candidates += r.Candidates
	s.Confirmed += r.Confirmed
	s.Rejected += r.Rejected
	s.Suppressed += r.Suppressed
	s.FailOpen += r.FailOpen
	s.AlreadyRedacted += r.AlreadyRedacted
	s.Results = append(s.Results, r)
}

// Finish stamps the end time
func (s *Summary) Finish() {
	s.FinishedAt = time.Now()
}

// Duration is the wall time of the run
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// ExitCode maps the outcome to a process exit code. Failures win over findings.
func (s *Summary) ExitCode() int {
	switch {
	case s.Failed > 0 || s.Skipped > 0:
		return ExitFailures
	case s.Redacted > 0 || s.Flagged > 0:
		return ExitFindings
	default:
		return ExitClean
	}
}
