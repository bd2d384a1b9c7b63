// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ocr adapts an external OCR engine into recognized lines with
// bounding boxes.
package ocr

import (
	"context"
	"errors"
	"image"
)

// ErrEngineUnavailable is returned when the OCR binary cannot be located or run
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Word is a single recognized token
type Word struct {
	Text       string
	Start, End int // byte offsets within the line text
	Box        image.Rectangle
	Confidence float64
}

// Line is one recognized line of text in reading order
type Line struct {
	Text  string
	Box   image.Rectangle
	Words []Word
}

// Result holds every line recognized in one image
type Result struct {
	Lines []Line
}

// Text joins the recognized lines with newlines
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	n := 0
	for _, l := range r.Lines {
		n += len(l.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, l := range r.Lines {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, l.Text...)
	}
	return string(buf)
}

// Engine recognizes text in an image file
type Engine interface {
	Recognize(ctx context.Context, imagePath string) (*Result, error)
}

// Prober reports whether an engine is installed and runnable
type Prober interface {
	Probe(ctx context.Context) (string, error)
}
