// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package report records per-file outcomes and renders run summaries.
package report

import (
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"shroud/internal/detect"
	"shroud/internal/faults"
	"shroud/internal/scan"
)

// Status is the outcome for one file
type Status string

const (
	// StatusRedacted means confirmed candidates were redacted and the artifact written
	StatusRedacted Status = "redacted"
	// StatusFlagged means confirmed candidates were found in report mode
	StatusFlagged Status = "flagged"
	// StatusClean means nothing needed redacting
	StatusClean Status = "clean"
	// StatusSkipped means no extraction engine could handle the file
	StatusSkipped Status = "skipped"
	// StatusFailed means the file could not be processed
	StatusFailed Status = "failed"
)

// Finding is a reportable candidate. Text is only filled when matches are shown.
type Finding struct {
	Category    string  `json:"category" yaml:"category"`
	Rule        string  `json:"rule" yaml:"rule"`
	Location    string  `json:"location" yaml:"location"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	Verdict     string  `json:"verdict" yaml:"verdict"`
	Fingerprint string  `json:"fingerprint" yaml:"fingerprint"`

	text string
}

// Text returns the matched text
func (f Finding) Text() string {
	return f.text
}

// Fingerprint hashes a category and matched text so findings can be
// correlated across runs without storing the value
func Fingerprint(category, text string) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(category))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// NewFinding converts a detector candidate
func NewFinding(c detect.Candidate) Finding {
	return Finding{
		Category:    c.Category,
		Rule:        c.Rule,
		Location:    c.Loc.String(),
		Confidence:  c.Confidence,
		Verdict:     c.Verdict.String(),
		Fingerprint: Fingerprint(c.Category, c.Text),
		text:        c.Text,
	}
}

// FileResult is the outcome of processing one target
type FileResult struct {
	Target          scan.ScanTarget
	Status          Status
	Findings        []Finding
	Candidates      int
	Confirmed       int
	Rejected        int
	Suppressed      int // rejected by a suppression rule, included in Rejected
	FailOpen        int
	AlreadyRedacted int
	OutputPath      string
	Fault           error
	Failures        []string // per-candidate recheck failures
	Duration        time.Duration
}

// Count fills the verdict totals from candidates
func (r *FileResult) Count(cands []detect.Candidate) {
	r.Candidates = len(cands)
	r.Confirmed, r.Rejected, r.FailOpen = 0, 0, 0
	r.Findings = r.Findings[:0]
	for _, c := range cands {
		switch c.Verdict {
		case detect.Rejected:
			r.Rejected++
		case detect.FailOpen:
			r.FailOpen++
			r.Confirmed++
		default:
			r.Confirmed++
		}
		r.Findings = append(r.Findings, NewFinding(c))
	}
}

// FaultKind returns the kind of the recorded fault, if any
func (r FileResult) FaultKind() faults.Kind {
	if r.Fault == nil {
		return faults.KindUnknown
	}
	return faults.KindOf(r.Fault)
}

// Fail records a fault and picks skipped or failed from its kind
func (r *FileResult) Fail(err error) {
	r.Fault = err
	r.Status = StatusFailed
	if errors.Is(err, faults.ErrExtractionUnavailable) {
		r.Status = StatusSkipped
	}
}

// Log is an append-only result log shared by pipeline workers
type Log struct {
	mu      sync.Mutex
	results []FileResult
}

// NewLog creates an empty log
func NewLog() *Log {
	return &Log{}
}

// Append adds a result
func (l *Log) Append(r FileResult) {
	l.mu.Lock()
	l.results = append(l.results, r)
	l.mu.Unlock()
}

// Len returns the number of results
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.results)
}

// Results returns a copy of the results in append order
func (l *Log) Results() []FileResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]FileResult(nil), l.results...)
}
