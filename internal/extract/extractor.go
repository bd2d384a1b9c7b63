// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package extract turns scan targets into text spans with source locations.
package extract

import (
	"context"
	"fmt"

	"shroud/internal/faults"
	"shroud/internal/scan"
)

// Extractor produces the text of one target
type Extractor interface {
	// Extract reads the target and returns its document. Failures are faults.Error values.
	Extract(ctx context.Context, target scan.ScanTarget) (*Document, error)

	// ComponentName returns the name used in timing records
	ComponentName() string
}

// Registry dispatches extraction by type tag
type Registry struct {
	extractors map[scan.TypeTag]Extractor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[scan.TypeTag]Extractor)}
}

// Register binds an extractor to a type tag, replacing any earlier one
func (r *Registry) Register(tag scan.TypeTag, e Extractor) {
	r.extractors[tag] = e
}

// Get returns the extractor for a type tag
func (r *Registry) Get(tag scan.TypeTag) (Extractor, bool) {
	e, ok := r.extractors[tag]
	return e, ok
}

// Extract dispatches to the registered variant and validates the document
func (r *Registry) Extract(ctx context.Context, target scan.ScanTarget) (*Document, error) {
	e, ok := r.extractors[target.Type]
	if !ok {
		return nil, faults.New(faults.UnsupportedType, "extract", target.Path,
			fmt.Errorf("no extractor for %s", target.Type))
	}
	doc, err := e.Extract(ctx, target)
	if err != nil {
		return nil, faults.Wrap(faults.UnreadableFile, "extract", target.Path, err)
	}
	if err := doc.Validate(); err != nil {
		doc.Close()
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path, err)
	}
	return doc, nil
}
