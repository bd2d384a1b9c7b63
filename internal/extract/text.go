// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"shroud/internal/faults"
	"shroud/internal/scan"
)

// DefaultMaxTextBytes caps structured text files held in memory
const DefaultMaxTextBytes = 32 * 1024 * 1024

// TextExtractor reads a plain text file as a single span
type TextExtractor struct{}

// ComponentName implements Extractor
func (TextExtractor) ComponentName() string { return "text-extractor" }

// Extract implements Extractor
func (TextExtractor) Extract(ctx context.Context, target scan.ScanTarget) (*Document, error) {
	return readText(ctx, target, 0, false)
}

// StructuredExtractor reads csv, json, xml and similar files. Content must be
// valid UTF-8 and within MaxBytes.
type StructuredExtractor struct {
	MaxBytes int64
}

// ComponentName implements Extractor
func (StructuredExtractor) ComponentName() string { return "structured-extractor" }

// Extract implements Extractor
func (s StructuredExtractor) Extract(ctx context.Context, target scan.ScanTarget) (*Document, error) {
	max := s.MaxBytes
	if max <= 0 {
		max = DefaultMaxTextBytes
	}
	return readText(ctx, target, max, true)
}

func readText(ctx context.Context, target scan.ScanTarget, maxBytes int64, requireUTF8 bool) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxBytes > 0 && target.Size > maxBytes {
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path,
			fmt.Errorf("%d bytes exceeds the %d byte text limit", target.Size, maxBytes))
	}
	content, err := os.ReadFile(target.Path)
	if err != nil {
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path, err)
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path,
			fmt.Errorf("%d bytes exceeds the %d byte text limit", len(content), maxBytes))
	}
	if requireUTF8 && !utf8.Valid(content) {
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path,
			fmt.Errorf("content is not valid UTF-8"))
	}

	doc := &Document{Target: target, Content: content}
	if len(content) > 0 {
		doc.Spans = []Span{{
			Text: string(content),
			Loc:  Location{Kind: ByteRange, Start: 0, End: len(content)},
		}}
	}
	return doc, nil
}
