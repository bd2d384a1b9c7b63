// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package imageredact paints opaque boxes over confirmed candidates in image
// files and re-encodes them, which drops embedded metadata.
package imageredact

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"shroud/internal/detect"
	"shroud/internal/extract"
	"shroud/internal/redact"
)

const (
	// DefaultPadding is added around each box, in pixels
	DefaultPadding = 4
	// DefaultJPEGQuality is used when re-encoding JPEG output
	DefaultJPEGQuality = 95
)

// ErrNoBox means a confirmed candidate could not be located on its page.
// Writing the artifact anyway would leave the value visible.
var ErrNoBox = errors.New("candidate has no box to paint")

// Unlocated wraps ErrNoBox for one candidate
func Unlocated(c detect.Candidate) error {
	return fmt.Errorf("%w: %s candidate in span %d on page %d", ErrNoBox, c.Category, c.SpanIndex, c.Loc.Page+1)
}

// CandidateBox returns the page and pixel box covering a candidate: the union
// of the recognized words it overlaps, or the whole span box when none do.
// Metadata candidates have no box.
func CandidateBox(doc *extract.Document, c detect.Candidate, padding int) (int, image.Rectangle, bool) {
	if c.Loc.Kind != extract.PageBox || c.SpanIndex < 0 || c.SpanIndex >= len(doc.Spans) {
		return 0, image.Rectangle{}, false
	}
	span := doc.Spans[c.SpanIndex]
	var box image.Rectangle
	for _, w := range span.Words {
		if w.End <= c.Start || w.Start >= c.End {
			continue
		}
		box = box.Union(w.Box)
	}
	if box.Empty() {
		box = span.Loc.Box
	}
	box = box.Inset(-padding)
	if page, ok := doc.Page(c.Loc.Page); ok && !page.Bounds.Empty() {
		box = box.Intersect(page.Bounds)
	}
	return c.Loc.Page, box, !box.Empty()
}

// Paint copies src into a new RGBA image with every box filled black
func Paint(src image.Image, boxes []image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	black := image.NewUniform(color.Black)
	for _, b := range boxes {
		draw.Draw(dst, b, black, image.Point{}, draw.Src)
	}
	return dst
}

// Covered reports whether every pixel in r is already black
func Covered(img image.Image, r image.Rectangle) bool {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return false
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if cr|cg|cb != 0 {
				return false
			}
		}
	}
	return true
}

// Decode reads an image file and returns it with its format name
func Decode(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return img, format, nil
}

// OutputFormat maps a decoded format to the format written. There is no webp
// encoder, so webp becomes png.
func OutputFormat(format string) string {
	if format == "webp" {
		return "png"
	}
	return format
}

// Encode writes img in the given output format
func Encode(w io.Writer, img image.Image, format string, jpegQuality int) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg":
		if jpegQuality <= 0 {
			jpegQuality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Redactor paints candidate boxes on single-page images
type Redactor struct {
	Padding     int
	JPEGQuality int
}

// New creates an image redactor. Negative padding uses the default.
func New(padding, jpegQuality int) *Redactor {
	if padding < 0 {
		padding = DefaultPadding
	}
	return &Redactor{Padding: padding, JPEGQuality: jpegQuality}
}

// ComponentName implements redact.Redactor
func (r *Redactor) ComponentName() string { return "image-redactor" }

// OutputExt implements redact.ExtensionRewriter
func (r *Redactor) OutputExt(path string) string {
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ".webp") {
		return ".png"
	}
	return ext
}

// Redact implements redact.Redactor. Metadata candidates need no painting:
// re-encoding never carries metadata over.
func (r *Redactor) Redact(ctx context.Context, plan *redact.Plan, dst string) (*redact.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, format, err := Decode(plan.Target.Path)
	if err != nil {
		return nil, err
	}

	res := &redact.Result{}
	var boxes []image.Rectangle
	for _, c := range plan.Candidates {
		if c.Loc.Kind == extract.Metadata {
			res.Redactions = append(res.Redactions, redact.Mapping{Category: c.Category, Loc: c.Loc})
			continue
		}
		page, box, ok := CandidateBox(plan.Document, c, r.Padding)
		if !ok {
			return nil, Unlocated(c)
		}
		if Covered(src, box) {
			res.AlreadyRedacted++
			continue
		}
		boxes = append(boxes, box)
		res.Redactions = append(res.Redactions, redact.Mapping{Category: c.Category, Loc: c.Loc, Box: box, Page: page})
	}

	out := Paint(src, boxes)
	if len(boxes) > 0 {
		res.PagesRewritten = 1
	}

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	if err := Encode(f, out, OutputFormat(format), r.JPEGQuality); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return res, nil
}
