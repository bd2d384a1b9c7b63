// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package textredact replaces candidate byte ranges in text files with a placeholder.
package textredact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"shroud/internal/detect"
	"shroud/internal/redact"
)

var (
	// ErrOverlap is returned when two ranges overlap
	ErrOverlap = errors.New("overlapping redaction ranges")
	// ErrStaleContent is returned when a range no longer holds the candidate text
	ErrStaleContent = errors.New("content changed since extraction")
)

// Redactor is the text file redactor
type Redactor struct {
	Placeholder string
}

// New creates a text redactor. An empty placeholder uses redact.DefaultPlaceholder.
func New(placeholder string) *Redactor {
	if placeholder == "" {
		placeholder = redact.DefaultPlaceholder
	}
	return &Redactor{Placeholder: placeholder}
}

// ComponentName implements redact.Redactor
func (r *Redactor) ComponentName() string { return "text-redactor" }

// Redact implements redact.Redactor
func (r *Redactor) Redact(ctx context.Context, plan *redact.Plan, dst string) (*redact.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, result, err := Apply(plan.Document.Content, plan.Candidates, r.Placeholder)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(dst, out, 0o600); err != nil {
		return nil, err
	}
	return result, nil
}

type edit struct {
	at, end int // resolved positions in the input
	cand    detect.Candidate
	start   int // original offsets
	stop    int
}

// Apply replaces every candidate's byte range with placeholder. Ranges are
// resolved in one ascending pass; a range already holding the placeholder is
// left alone so applying the same plan twice yields the same bytes. Edits are
// then applied in descending offset order.
func Apply(content []byte, cands []detect.Candidate, placeholder string) ([]byte, *redact.Result, error) {
	type rng struct {
		start, end int
		cand       detect.Candidate
	}
	ranges := make([]rng, 0, len(cands))
	for _, c := range cands {
		start, end, ok := c.ByteRange()
		if !ok {
			return nil, nil, fmt.Errorf("candidate %s has %s location, not a byte range", c.Category, c.Loc.Kind)
		}
		ranges = append(ranges, rng{start: start, end: end, cand: c})
	}
	sort.SliceStable(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].start < ranges[i-1].end {
			return nil, nil, fmt.Errorf("%w: %d-%d and %d-%d", ErrOverlap,
				ranges[i-1].start, ranges[i-1].end, ranges[i].start, ranges[i].end)
		}
	}

	ph := []byte(placeholder)
	result := &redact.Result{}
	var edits []edit
	inputShift := 0
	for _, r := range ranges {
		at := r.start + inputShift
		text := []byte(r.cand.Text)
		switch {
		case at >= 0 && at+len(text) <= len(content) && bytes.Equal(content[at:at+len(text)], text):
			edits = append(edits, edit{at: at, end: at + len(text), cand: r.cand, start: r.start, stop: r.end})
		case at >= 0 && at+len(ph) <= len(content) && bytes.Equal(content[at:at+len(ph)], ph):
			result.AlreadyRedacted++
			inputShift += len(ph) - (r.end - r.start)
		default:
			return nil, nil, fmt.Errorf("%w: bytes %d-%d do not hold the %s candidate", ErrStaleContent, r.start, r.end, r.cand.Category)
		}
	}

	out := append([]byte(nil), content...)
	for i := len(edits) - 1; i >= 0; i-- {
		e := edits[i]
		tail := append([]byte(nil), out[e.end:]...)
		out = append(append(out[:e.at], ph...), tail...)
	}
	for _, e := range edits {
		result.Redactions = append(result.Redactions, redact.Mapping{
			Category: e.cand.Category,
			Loc:      e.cand.Loc,
			Start:    e.start,
			End:      e.stop,
		})
	}
	return out, result, nil
}
