// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package scan

import (
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TypeTag is the closed set of file variants the pipeline understands
type TypeTag int

const (
	// PlainText is free-form text read as-is
	PlainText TypeTag = iota
	// StructuredText is text with a syntax (csv, json, xml, ...)
	StructuredText
	// Image is a raster image processed with OCR
	Image
	// PDF is rasterized page by page and processed with OCR
	PDF
)

// String returns the string representation of the type tag
func (t TypeTag) String() string {
	switch t {
	case PlainText:
		return "plain-text"
	case StructuredText:
		return "structured-text"
	case Image:
		return "image"
	case PDF:
		return "pdf"
	default:
		return "unknown"
	}
}

// IsText reports whether the variant is redacted at the byte level
func (t TypeTag) IsText() bool {
	return t == PlainText || t == StructuredText
}

var extensionTypes = map[string]TypeTag{
	".txt":  PlainText,
	".log":  PlainText,
	".md":   PlainText,
	".py":   PlainText,
	".csv":  StructuredText,
	".json": StructuredText,
	".xml":  StructuredText,
	".html": StructuredText,
	".yml":  StructuredText,
	".ini":  StructuredText,
	".png":  Image,
	".jpg":  Image,
	".jpeg": Image,
	".gif":  Image,
	".bmp":  Image,
	".tiff": Image,
	".webp": Image,
	".pdf":  PDF,
}

// ResolveType maps a path to its type tag by extension (case-insensitive)
func ResolveType(path string) (TypeTag, bool) {
	t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	return t, ok
}

// RecognizedExtensions returns every recognized extension, sorted
func RecognizedExtensions() []string {
	exts := make([]string, 0, len(extensionTypes))
	for ext := range extensionTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ScanTarget is a file selected for processing. Treat as immutable.
type ScanTarget struct {
	Path    string // absolute or root-joined path
	Root    string // root the file was found under
	Rel     string // path relative to Root, slash separated
	Type    TypeTag
	Size    int64
	ModTime time.Time
}

// NewTarget builds a target for a single path outside of a walk
func NewTarget(root, path string, size int64, mod time.Time) (ScanTarget, bool) {
	t, ok := ResolveType(path)
	if !ok {
		return ScanTarget{}, false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return ScanTarget{
		Path:    path,
		Root:    root,
		Rel:     filepath.ToSlash(rel),
		Type:    t,
		Size:    size,
		ModTime: mod,
	}, true
}
