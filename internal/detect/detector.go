// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package detect finds sensitive-data candidates in extracted text. Detection
// is pure: it never mutates the document and performs no I/O.
package detect

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"shroud/internal/extract"
)

// Detector applies an ordered rule set to every span of a document
type Detector struct {
	rules []Rule
}

// New creates a detector over rules, in order
func New(rules []Rule) *Detector {
	return &Detector{rules: append([]Rule(nil), rules...)}
}

// Default creates a detector with DefaultRules
func Default() *Detector {
	return New(DefaultRules())
}

// Rules returns a copy of the rule set
func (d *Detector) Rules() []Rule {
	return append([]Rule(nil), d.rules...)
}

// Categories lists the rule categories in rule order, without duplicates
func (d *Detector) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range d.rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	return out
}

// Filter returns a detector restricted to the named categories (case-insensitive).
// An empty list keeps every rule; an unknown category is an error.
func (d *Detector) Filter(categories []string) (*Detector, error) {
	if len(categories) == 0 {
		return d, nil
	}
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			want[c] = true
		}
	}
	known := make(map[string]bool)
	var rules []Rule
	for _, r := range d.rules {
		known[r.Category] = true
		if want[r.Category] {
			rules = append(rules, r)
		}
	}
	for c := range want {
		if !known[c] {
			return nil, fmt.Errorf("unknown check %q (available: %s)", c, strings.Join(d.Categories(), ", "))
		}
	}
	return New(rules), nil
}

type match struct {
	start, end int
	rule       int
}

// Detect returns candidates ordered by span index then start offset. Rules run
// per span; matches never cross span boundaries.
func (d *Detector) Detect(doc *extract.Document) []Candidate {
	var out []Candidate
	for si, span := range doc.Spans {
		for _, m := range d.spanMatches(span.Text) {
			r := d.rules[m.rule]
			out = append(out, Candidate{
				Category:   r.Category,
				Rule:       r.Name,
				Text:       span.Text[m.start:m.end],
				Start:      m.start,
				End:        m.end,
				SpanIndex:  si,
				Loc:        span.Loc,
				Confidence: r.Confidence,
			})
		}
	}
	return out
}

// spanMatches collects every rule match, keeps the longest of any overlapping
// group (earlier rule on ties) and returns them by start offset.
func (d *Detector) spanMatches(text string) []match {
	var all []match
	for ri, r := range d.rules {
		for _, idx := range r.Pattern.FindAllStringSubmatchIndex(text, -1) {
			g := r.Group
			if 2*g+1 >= len(idx) || idx[2*g] < 0 {
				continue
			}
			start, end := idx[2*g], idx[2*g+1]
			if start == end {
				continue
			}
			switch {
			case r.Refine != nil:
				s, e, ok := r.Refine(text[start:end])
				if !ok {
					continue
				}
				start, end = start+s, start+e
			case r.Validate != nil && !r.Validate(text[start:end]):
				continue
			}
			all = append(all, match{start: start, end: end, rule: ri})
		}
	}
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		li, lj := all[i].end-all[i].start, all[j].end-all[j].start
		if li != lj {
			return li > lj
		}
		if all[i].rule != all[j].rule {
			return all[i].rule < all[j].rule
		}
		return all[i].start < all[j].start
	})

	var kept []match
	for _, m := range all {
		overlaps := false
		for _, k := range kept {
			if m.start < k.end && k.start < m.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, m)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].start < kept[j].start })
	return kept
}

// ContextWindow returns up to n bytes of span text on each side of the
// candidate, trimmed to rune boundaries.
func ContextWindow(doc *extract.Document, c Candidate, n int) string {
	if c.SpanIndex < 0 || c.SpanIndex >= len(doc.Spans) {
		return c.Text
	}
	text := doc.Spans[c.SpanIndex].Text
	if c.Start < 0 || c.End > len(text) || c.Start > c.End {
		return c.Text
	}
	lo := max(c.Start-n, 0)
	for lo < c.Start && !utf8.RuneStart(text[lo]) {
		lo++
	}
	hi := min(c.End+n, len(text))
	for hi > c.End && hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi--
	}
	return text[lo:hi]
}
