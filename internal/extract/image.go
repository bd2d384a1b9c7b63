// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sort"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"shroud/internal/faults"
	"shroud/internal/ocr"
	"shroud/internal/scan"
)

// ImageExtractor runs OCR over an image file. A nil Engine means OCR is not
// installed and every image fails with ExtractionUnavailable.
type ImageExtractor struct {
	Engine ocr.Engine

	// SkipMetadata disables EXIF metadata spans
	SkipMetadata bool
}

// ComponentName implements Extractor
func (ImageExtractor) ComponentName() string { return "image-extractor" }

// Extract implements Extractor
func (e ImageExtractor) Extract(ctx context.Context, target scan.ScanTarget) (*Document, error) {
	if e.Engine == nil {
		return nil, faults.New(faults.ExtractionUnavailable, "extract", target.Path, ocr.ErrEngineUnavailable)
	}
	bounds, err := imageBounds(target.Path)
	if err != nil {
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path, err)
	}
	doc := &Document{
		Target: target,
		Pages:  []Page{{Index: 0, ImagePath: target.Path, Bounds: bounds}},
	}
	spans, err := recognizePage(ctx, e.Engine, target.Path, 0)
	if err != nil {
		return nil, ocrFault(target.Path, err)
	}
	doc.Spans = spans
	if !e.SkipMetadata {
		doc.Spans = append(doc.Spans, metadataSpans(target.Path)...)
	}
	return doc, nil
}

func ocrFault(path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return faults.New(faults.ExtractionUnavailable, "extract", path, err)
}

// recognizePage runs OCR on one page image and maps each line to a span
func recognizePage(ctx context.Context, engine ocr.Engine, imagePath string, page int) ([]Span, error) {
	res, err := engine.Recognize(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	spans := make([]Span, 0, len(res.Lines))
	for _, line := range res.Lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		words := make([]Word, len(line.Words))
		for i, w := range line.Words {
			words[i] = Word{Text: w.Text, Start: w.Start, End: w.End, Box: w.Box}
		}
		spans = append(spans, Span{
			Text:  line.Text,
			Loc:   Location{Kind: PageBox, Page: page, Box: line.Box},
			Words: words,
		})
	}
	return spans, nil
}

func imageBounds(path string) (image.Rectangle, error) {
	f, err := os.Open(path)
	if err != nil {
		return image.Rectangle{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Rectangle{}, fmt.Errorf("decoding image header: %w", err)
	}
	return image.Rect(0, 0, cfg.Width, cfg.Height), nil
}

type exifWalker struct {
	fields map[string]string
}

// Walk implements exif.Walker, keeping printable string fields only
func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag == nil || tag.Format() != tiff.StringVal {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimSpace(strings.TrimRight(val, "\x00"))
	if val != "" {
		w.fields[string(name)] = val
	}
	return nil
}

// metadataSpans returns one span per EXIF string field, sorted by field name.
// Files without EXIF yield nothing.
func metadataSpans(path string) []Span {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}
	w := &exifWalker{fields: make(map[string]string)}
	if err := x.Walk(w); err != nil {
		return nil
	}
	names := make([]string, 0, len(w.fields))
	for name := range w.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	spans := make([]Span, 0, len(names))
	for _, name := range names {
		spans = append(spans, Span{
			Text: w.fields[name],
			Loc:  Location{Kind: Metadata, Field: name},
		})
	}
	return spans
}
