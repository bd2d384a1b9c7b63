// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pdfredact rebuilds a PDF from its rasterized pages with candidate
// boxes painted over. The output has no text layer.
package pdfredact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"shroud/internal/redact"
	"shroud/internal/redact/imageredact"
)

var (
	// ErrNoPages means the document was extracted without page images
	ErrNoPages = errors.New("document has no rasterized pages")
	// ErrLeak means redacted text is still extractable from the output
	ErrLeak = errors.New("redacted text still present in output")
)

// Redactor paints boxes on page rasters and reassembles them into a PDF
type Redactor struct {
	Padding int
}

// New creates a PDF redactor. Negative padding uses the image default.
func New(padding int) *Redactor {
	if padding < 0 {
		padding = imageredact.DefaultPadding
	}
	return &Redactor{Padding: padding}
}

// ComponentName implements redact.Redactor
func (r *Redactor) ComponentName() string { return "pdf-redactor" }

// Redact implements redact.Redactor. Only pages holding candidates are
// decoded and painted; the rest are embedded as rasterized.
func (r *Redactor) Redact(ctx context.Context, plan *redact.Plan, dst string) (*redact.Result, error) {
	doc := plan.Document
	if len(doc.Pages) == 0 {
		return nil, ErrNoPages
	}

	res := &redact.Result{}
	boxes := make(map[int][]image.Rectangle)
	for _, c := range plan.Candidates {
		page, box, ok := imageredact.CandidateBox(doc, c, r.Padding)
		if !ok {
			return nil, imageredact.Unlocated(c)
		}
		boxes[page] = append(boxes[page], box)
		res.Redactions = append(res.Redactions, redact.Mapping{Category: c.Category, Loc: c.Loc, Box: box, Page: page})
	}

	readers := make([]io.Reader, 0, len(doc.Pages))
	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pageBoxes := boxes[page.Index]
		if len(pageBoxes) == 0 {
			raw, err := os.ReadFile(page.ImagePath)
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", page.Index+1, err)
			}
			readers = append(readers, bytes.NewReader(raw))
			continue
		}
		img, _, err := imageredact.Decode(page.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Index+1, err)
		}
		var buf bytes.Buffer
		if err := imageredact.Encode(&buf, imageredact.Paint(img, pageBoxes), "png", 0); err != nil {
			return nil, fmt.Errorf("page %d: %w", page.Index+1, err)
		}
		readers = append(readers, &buf)
		res.PagesRewritten++
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	if err := api.ImportImages(nil, f, readers, pdfcpu.DefaultImportConfig(), nil); err != nil {
		f.Close()
		return nil, fmt.Errorf("assembling pages: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	if err := api.ValidateFile(dst, nil); err != nil {
		return nil, fmt.Errorf("validating output: %w", err)
	}
	texts := make([]string, 0, len(plan.Candidates))
	for _, c := range plan.Candidates {
		texts = append(texts, c.Text)
	}
	if err := Verify(dst, len(doc.Pages), texts); err != nil {
		return nil, err
	}
	return res, nil
}

// Verify checks that a PDF has the expected page count and that none of the
// given strings can be extracted from its text layer
func Verify(path string, pages int, redacted []string) error {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("reopening output: %w", err)
	}
	defer f.Close()

	if n := reader.NumPage(); n != pages {
		return fmt.Errorf("output has %d pages, expected %d", n, pages)
	}
	for i := 1; i <= pages; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		for _, s := range redacted {
			if s != "" && strings.Contains(text, s) {
				return fmt.Errorf("%w: page %d", ErrLeak, i)
			}
		}
	}
	return nil
}
