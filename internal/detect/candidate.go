// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package detect

import (
	"shroud/internal/extract"
)

// Verdict is the rechecker's decision on a candidate
type Verdict int

const (
	// Unverified candidates were never sent to the rechecker
	Unverified Verdict = iota
	// Confirmed candidates were confirmed by the rechecker, or rechecking is disabled
	Confirmed
	// Rejected candidates are false positives and are not redacted
	Rejected
	// FailOpen candidates could not be rechecked and are kept
	FailOpen
)

// String returns the string representation of the verdict
func (v Verdict) String() string {
	switch v {
	case Unverified:
		return "unverified"
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	case FailOpen:
		return "fail_open"
	default:
		return "unknown"
	}
}

// Candidate is a span of text flagged by a rule
type Candidate struct {
	Category   string
	Rule       string
	Text       string
	Start      int // byte offset within the span text
	End        int
	SpanIndex  int
	Loc        extract.Location // the span's location, unmodified
	Confidence float64
	Verdict    Verdict
}

// Confirmed reports whether the candidate should be redacted
func (c Candidate) Confirmed() bool {
	return c.Verdict != Rejected
}

// ByteRange returns absolute file offsets for candidates from text files
func (c Candidate) ByteRange() (start, end int, ok bool) {
	if c.Loc.Kind != extract.ByteRange {
		return 0, 0, false
	}
	return c.Loc.Start + c.Start, c.Loc.Start + c.End, true
}

// FilterConfirmed returns the candidates that should be redacted, order preserved
func FilterConfirmed(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Confirmed() {
			out = append(out, c)
		}
	}
	return out
}
