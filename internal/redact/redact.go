// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package redact defines redaction plans and the per-format redactor registry.
package redact

import (
	"context"
	"fmt"
	"image"
	"sort"

	"shroud/internal/detect"
	"shroud/internal/extract"
	"shroud/internal/scan"
)

// DefaultPlaceholder replaces redacted text
const DefaultPlaceholder = "[REDACTED]"

// Plan is the set of confirmed candidates for one target, ordered by location
type Plan struct {
	Target     scan.ScanTarget
	Document   *extract.Document
	Candidates []detect.Candidate
}

// NewPlan keeps the confirmed candidates and orders them by span then offset
func NewPlan(doc *extract.Document, cands []detect.Candidate) *Plan {
	confirmed := detect.FilterConfirmed(cands)
	sort.SliceStable(confirmed, func(i, j int) bool {
		if confirmed[i].SpanIndex != confirmed[j].SpanIndex {
			return confirmed[i].SpanIndex < confirmed[j].SpanIndex
		}
		return confirmed[i].Start < confirmed[j].Start
	})
	return &Plan{Target: doc.Target, Document: doc, Candidates: confirmed}
}

// Empty reports whether there is nothing to redact
func (p *Plan) Empty() bool {
	return len(p.Candidates) == 0
}

// Close releases the document's temporary files
func (p *Plan) Close() error {
	if p == nil || p.Document == nil {
		return nil
	}
	return p.Document.Close()
}

// Mapping describes one applied redaction
type Mapping struct {
	Category string
	Loc      extract.Location
	Start    int // absolute byte offsets, text files only
	End      int
	Box      image.Rectangle // painted area, image and PDF pages only
	Page     int
}

// Result describes a written artifact
type Result struct {
	Redactions []Mapping

	// AlreadyRedacted counts ranges found holding the placeholder
	AlreadyRedacted int

	// PagesRewritten counts page images painted (images and PDFs)
	PagesRewritten int
}

// Redactor writes the redacted artifact for a plan to dst. dst is a temporary
// path owned by the output writer; the redactor must not touch the source.
type Redactor interface {
	Redact(ctx context.Context, plan *Plan, dst string) (*Result, error)
	ComponentName() string
}

// ExtensionRewriter is implemented by redactors that write a different format
// than they read
type ExtensionRewriter interface {
	OutputExt(path string) string
}

// Registry dispatches redaction by type tag
type Registry struct {
	redactors map[scan.TypeTag]Redactor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{redactors: make(map[scan.TypeTag]Redactor)}
}

// Register binds a redactor to a type tag
func (r *Registry) Register(tag scan.TypeTag, red Redactor) {
	r.redactors[tag] = red
}

// Get returns the redactor for a type tag
func (r *Registry) Get(tag scan.TypeTag) (Redactor, error) {
	red, ok := r.redactors[tag]
	if !ok {
		return nil, fmt.Errorf("no redactor registered for %s", tag)
	}
	return red, nil
}
