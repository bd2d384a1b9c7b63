// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package raster renders PDF pages to image files with an external engine.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"shroud/internal/paths"
)

// DefaultDPI is used when no resolution is configured
const DefaultDPI = 300

// ErrEngineUnavailable is returned when the rasterizer cannot be located or run
var ErrEngineUnavailable = errors.New("rasterizer unavailable")

// Rasterizer renders every page of a PDF into outDir, returning page image
// paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, dpi int, outDir string) ([]string, error)
}

// Poppler drives pdftoppm
type Poppler struct {
	binary string
}

// NewPoppler resolves pdftoppm from a configured file or bin directory, else PATH
func NewPoppler(configured string) (*Poppler, error) {
	bin, err := paths.Binary(configured, "pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return &Poppler{binary: bin}, nil
}

// Binary returns the resolved executable path
func (p *Poppler) Binary() string {
	return p.binary
}

// Probe runs pdftoppm -v. Poppler prints its version on stderr.
func (p *Poppler) Probe(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, p.binary, "-v").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, p.binary, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

// Rasterize runs pdftoppm -r dpi -png pdf outDir/page
func (p *Poppler) Rasterize(ctx context.Context, pdfPath string, dpi int, outDir string) ([]string, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, err
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, "-r", strconv.Itoa(dpi), "-png", pdfPath, filepath.Join(outDir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: pdftoppm failed on %s: %v: %s",
			ErrEngineUnavailable, filepath.Base(pdfPath), err, strings.TrimSpace(stderr.String()))
	}
	pages, err := CollectPages(outDir, "page")
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no pages for %s", ErrEngineUnavailable, filepath.Base(pdfPath))
	}
	return pages, nil
}

// CollectPages lists prefix-N.png files in dir sorted by N. pdftoppm zero-pads
// N to the width of the page count, so a lexical sort is not enough.
func CollectPages(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix+"-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, prefix+"-"), ".png")
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, name)})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	paths := make([]string, len(pages))
	for i, p := range pages {
		paths[i] = p.path
	}
	return paths, nil
}
