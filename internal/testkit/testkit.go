// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package testkit holds fakes and fixture builders shared by package tests.
package testkit

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"

	"shroud/internal/ocr"
)

// FakeEngine returns canned OCR results keyed by image base name
type FakeEngine struct {
	mu      sync.Mutex
	Results map[string]*ocr.Result
	Err     error
	calls   []string
}

// Recognize implements ocr.Engine
func (f *FakeEngine) Recognize(ctx context.Context, imagePath string) (*ocr.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, filepath.Base(imagePath))
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if res, ok := f.Results[filepath.Base(imagePath)]; ok {
		return res, nil
	}
	return &ocr.Result{}, nil
}

// Calls returns the image base names recognized so far
func (f *FakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Line builds an OCR line from words laid out left to right at y with the given height.
// Each word is 10px per byte wide with a 10px gap.
func Line(x, y, height int, words ...string) ocr.Line {
	var line ocr.Line
	var sb strings.Builder
	for i, text := range words {
		if i > 0 {
			sb.WriteByte(' ')
			x += 10
		}
		w := ocr.Word{Text: text, Start: sb.Len(), Confidence: 95}
		sb.WriteString(text)
		w.End = sb.Len()
		w.Box = image.Rect(x, y, x+10*len(text), y+height)
		x = w.Box.Max.X
		if i == 0 {
			line.Box = w.Box
		} else {
			line.Box = line.Box.Union(w.Box)
		}
		line.Words = append(line.Words, w)
	}
	line.Text = sb.String()
	return line
}

// FakeRasterizer writes the given page images as page-N.png
type FakeRasterizer struct {
	Pages []image.Image
	Err   error
}

// Rasterize implements raster.Rasterizer
func (f *FakeRasterizer) Rasterize(ctx context.Context, pdfPath string, dpi int, outDir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return nil, err
	}
	paths := make([]string, len(f.Pages))
	for i, img := range f.Pages {
		p := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i+1))
		if err := WritePNG(p, img); err != nil {
			return nil, err
		}
		paths[i] = p
	}
	return paths, nil
}

// Blank returns a white RGBA image
func Blank(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

// Fill paints r with c
func Fill(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// WritePNG encodes img to path
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// BuildPDF writes a raster-only PDF with one page per image
func BuildPDF(path string, pages []image.Image) error {
	readers := make([]io.Reader, len(pages))
	for i, img := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return err
		}
		readers[i] = &buf
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := api.ImportImages(nil, f, readers, pdfcpu.DefaultImportConfig(), nil); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// AllBlackIn reports whether every pixel in r is black
func AllBlackIn(img image.Image, r image.Rectangle) bool {
	r = r.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if cr > 0x0fff || cg > 0x0fff || cb > 0x0fff {
				return false
			}
		}
	}
	return true
}

// ReadImage decodes an image file with the registered decoders
func ReadImage(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return image.Decode(f)
}

// JPEGWithMake returns a small JPEG carrying one EXIF string field, Make
func JPEGWithMake(maker string) ([]byte, error) {
	var img bytes.Buffer
	if err := jpeg.Encode(&img, Blank(16, 16), nil); err != nil {
		return nil, err
	}

	var tf bytes.Buffer
	le := binary.LittleEndian
	tf.WriteString("II")
	binary.Write(&tf, le, uint16(42))
	binary.Write(&tf, le, uint32(8))
	binary.Write(&tf, le, uint16(1))
	binary.Write(&tf, le, uint16(0x010F))
	binary.Write(&tf, le, uint16(2))
	binary.Write(&tf, le, uint32(len(maker)+1))
	binary.Write(&tf, le, uint32(26))
	binary.Write(&tf, le, uint32(0))
	tf.WriteString(maker)
	tf.WriteByte(0)

	payload := append([]byte("Exif\x00\x00"), tf.Bytes()...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	seg = append(seg, payload...)

	raw := img.Bytes()
	out := append([]byte{}, raw[:2]...)
	out = append(out, seg...)
	return append(out, raw[2:]...), nil
}
