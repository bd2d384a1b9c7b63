// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extract

import (
	"fmt"
	"image"
	"os"

	"shroud/internal/scan"
)

// LocationKind says how a span maps back into its source file
type LocationKind int

const (
	// ByteRange locations are absolute byte offsets in a text file
	ByteRange LocationKind = iota
	// PageBox locations are a page index plus a pixel bounding box
	PageBox
	// Metadata locations name an embedded metadata field
	Metadata
)

// String returns the string representation of the location kind
func (k LocationKind) String() string {
	switch k {
	case ByteRange:
		return "byte-range"
	case PageBox:
		return "page-box"
	case Metadata:
		return "metadata"
	default:
		return "unknown"
	}
}

// Location is where a span came from
type Location struct {
	Kind  LocationKind
	Start int // ByteRange only
	End   int // ByteRange only
	Page  int
	Box   image.Rectangle
	Field string // Metadata only
}

// String renders the location for reports
func (l Location) String() string {
	switch l.Kind {
	case ByteRange:
		return fmt.Sprintf("bytes %d-%d", l.Start, l.End)
	case PageBox:
		return fmt.Sprintf("page %d box %d,%d,%d,%d", l.Page+1, l.Box.Min.X, l.Box.Min.Y, l.Box.Max.X, l.Box.Max.Y)
	case Metadata:
		return "metadata " + l.Field
	default:
		return "unknown"
	}
}

// Word is a recognized word inside a span, with offsets into the span text
type Word struct {
	Text  string
	Start int
	End   int
	Box   image.Rectangle
}

// Span is a contiguous piece of extracted text
type Span struct {
	Text  string
	Loc   Location
	Words []Word
}

// Page is a page image backing image and PDF documents
type Page struct {
	Index     int
	ImagePath string
	Bounds    image.Rectangle
}

// Document is the extracted text of one target. Owned by the pipeline stage
// processing it; Close releases rasterized pages.
type Document struct {
	Target  scan.ScanTarget
	Spans   []Span
	Pages   []Page
	Content []byte // raw bytes, text files only

	workDir string
}

// Text concatenates all span text separated by newlines
func (d *Document) Text() string {
	n := 0
	for _, s := range d.Spans {
		n += len(s.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, s := range d.Spans {
		if i > 0 {
			buf = append(buf, '\n')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}

// Page returns the page with the given index
func (d *Document) Page(index int) (Page, bool) {
	for _, p := range d.Pages {
		if p.Index == index {
			return p, true
		}
	}
	return Page{}, false
}

// Close removes the private work directory, if any
func (d *Document) Close() error {
	if d == nil || d.workDir == "" {
		return nil
	}
	dir := d.workDir
	d.workDir = ""
	return os.RemoveAll(dir)
}

// Validate checks that span locations are ordered by appearance and do not overlap.
// Metadata spans come after every positional span.
func (d *Document) Validate() error {
	lastEnd := 0
	lastPage := -1
	seenMeta := false
	for i, s := range d.Spans {
		loc := s.Loc
		switch loc.Kind {
		case ByteRange:
			if seenMeta {
				return fmt.Errorf("span %d: positional span after metadata", i)
			}
			if loc.Start < lastEnd || loc.End < loc.Start {
				return fmt.Errorf("span %d: byte range %d-%d overlaps or precedes %d", i, loc.Start, loc.End, lastEnd)
			}
			if loc.End-loc.Start != len(s.Text) {
				return fmt.Errorf("span %d: byte range length %d does not match text length %d", i, loc.End-loc.Start, len(s.Text))
			}
			if d.Content != nil && loc.End > len(d.Content) {
				return fmt.Errorf("span %d: byte range %d-%d beyond content", i, loc.Start, loc.End)
			}
			lastEnd = loc.End
		case PageBox:
			if seenMeta {
				return fmt.Errorf("span %d: positional span after metadata", i)
			}
			if loc.Page < lastPage {
				return fmt.Errorf("span %d: page %d after page %d", i, loc.Page, lastPage)
			}
			if loc.Page > lastPage {
				lastPage = loc.Page
			}
			if _, ok := d.Page(loc.Page); !ok {
				return fmt.Errorf("span %d: unknown page %d", i, loc.Page)
			}
		case Metadata:
			seenMeta = true
		default:
			return fmt.Errorf("span %d: unknown location kind %d", i, loc.Kind)
		}
		for j, w := range s.Words {
			if w.Start < 0 || w.End > len(s.Text) || w.Start > w.End {
				return fmt.Errorf("span %d word %d: offsets %d-%d outside text", i, j, w.Start, w.End)
			}
		}
	}
	return nil
}
