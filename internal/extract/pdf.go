// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"shroud/internal/faults"
	"shroud/internal/ocr"
	"shroud/internal/raster"
	"shroud/internal/scan"
)

// PDFExtractor rasterizes every page once and runs OCR per page. Either
// engine being nil fails the target with ExtractionUnavailable.
type PDFExtractor struct {
	Rasterizer raster.Rasterizer
	Engine     ocr.Engine
	DPI        int

	// TempDir is the parent of per-document work dirs. Empty uses os.TempDir.
	TempDir string
}

// ComponentName implements Extractor
func (PDFExtractor) ComponentName() string { return "pdf-extractor" }

// PageCount reads the page count from the PDF structure
func PageCount(path string) (int, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF context: %w", err)
	}
	return pdfCtx.PageCount, nil
}

// Extract implements Extractor
func (e PDFExtractor) Extract(ctx context.Context, target scan.ScanTarget) (*Document, error) {
	if e.Rasterizer == nil {
		return nil, faults.New(faults.ExtractionUnavailable, "extract", target.Path, raster.ErrEngineUnavailable)
	}
	if e.Engine == nil {
		return nil, faults.New(faults.ExtractionUnavailable, "extract", target.Path, ocr.ErrEngineUnavailable)
	}
	pageCount, err := PageCount(target.Path)
	if err != nil {
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path, err)
	}

	workDir, err := os.MkdirTemp(e.TempDir, "shroud-pdf-*")
	if err != nil {
		return nil, faults.New(faults.UnreadableFile, "extract", target.Path, err)
	}
	doc := &Document{Target: target, workDir: workDir}

	dpi := e.DPI
	if dpi <= 0 {
		dpi = raster.DefaultDPI
	}
	images, err := e.Rasterizer.Rasterize(ctx, target.Path, dpi, workDir)
	if err != nil {
		doc.Close()
		return nil, ocrFault(target.Path, err)
	}
	if len(images) != pageCount {
		doc.Close()
		return nil, faults.New(faults.ExtractionUnavailable, "extract", target.Path,
			fmt.Errorf("rasterizer produced %d pages, document has %d", len(images), pageCount))
	}

	for i, img := range images {
		if err := ctx.Err(); err != nil {
			doc.Close()
			return nil, err
		}
		bounds, err := imageBounds(img)
		if err != nil {
			doc.Close()
			return nil, faults.New(faults.ExtractionUnavailable, "extract", target.Path,
				fmt.Errorf("page %d: %w", i+1, err))
		}
		doc.Pages = append(doc.Pages, Page{Index: i, ImagePath: img, Bounds: bounds})

		spans, err := recognizePage(ctx, e.Engine, img, i)
		if err != nil {
			doc.Close()
			return nil, ocrFault(target.Path, fmt.Errorf("page %d: %w", i+1, err))
		}
		doc.Spans = append(doc.Spans, spans...)
	}
	return doc, nil
}
