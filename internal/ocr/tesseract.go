// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"shroud/internal/paths"
)

// TesseractOptions configures the Tesseract adapter
type TesseractOptions struct {
	// Path is the binary, or the directory holding it. Empty searches PATH.
	Path string

	// Language passed with -l, default "eng"
	Language string

	// DPI hint passed with --dpi. Zero omits the flag.
	DPI int

	// ExtraArgs is a shell-style argument string appended before the tsv config
	ExtraArgs string

	// MinConfidence drops words recognized below this confidence (0-100)
	MinConfidence float64
}

// Tesseract runs the tesseract binary and parses its TSV output
type Tesseract struct {
	binary string
	opts   TesseractOptions
	extra  []string
}

// NewTesseract resolves the binary and parses extra arguments. A missing
// binary is reported as ErrEngineUnavailable.
func NewTesseract(opts TesseractOptions) (*Tesseract, error) {
	if opts.Language == "" {
		opts.Language = "eng"
	}
	extra, err := shlex.Split(opts.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid tesseract args %q: %w", opts.ExtraArgs, err)
	}
	bin, err := paths.Binary(opts.Path, "tesseract")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	return &Tesseract{binary: bin, opts: opts, extra: extra}, nil
}

// Binary returns the resolved executable path
func (t *Tesseract) Binary() string {
	return t.binary
}

// Probe runs tesseract --version and returns its first output line
func (t *Tesseract) Probe(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, t.binary, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrEngineUnavailable, t.binary, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return line, nil
}

// Recognize runs OCR on one image file
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (*Result, error) {
	args := []string{imagePath, "stdout", "-l", t.opts.Language}
	if t.opts.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(t.opts.DPI))
	}
	args = append(args, t.extra...)
	args = append(args, "tsv")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return nil, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		return nil, fmt.Errorf("%w: tesseract failed on %s: %v: %s",
			ErrEngineUnavailable, filepath.Base(imagePath), err, strings.TrimSpace(stderr.String()))
	}
	return ParseTSV(&stdout, t.opts.MinConfidence)
}

type lineKey struct {
	page, block, par, line int
}

// ParseTSV converts tesseract TSV output into lines. Only level-5 (word) rows
// are used; line boxes are the union of their word boxes.
func ParseTSV(r io.Reader, minConfidence float64) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	grouped := make(map[lineKey][]Word)
	var keys []lineKey
	header := true
	for scanner.Scan() {
		row := scanner.Text()
		if header {
			header = false
			if strings.HasPrefix(row, "level") {
				continue
			}
		}
		fields := strings.Split(row, "\t")
		if len(fields) < 12 || fields[0] != "5" {
			continue
		}
		nums := make([]int, 10)
		ok := true
		for i := 0; i < 10; i++ {
			n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
			if err != nil {
				ok = false
				break
			}
			nums[i] = n
		}
		if !ok {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(fields[10]), 64)
		if err != nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(fields[11:], "\t"))
		if text == "" || conf < minConfidence {
			continue
		}
		key := lineKey{page: nums[1], block: nums[2], par: nums[3], line: nums[4]}
		if _, seen := grouped[key]; !seen {
			keys = append(keys, key)
		}
		left, top, width, height := nums[6], nums[7], nums[8], nums[9]
		grouped[key] = append(grouped[key], Word{
			Text:       text,
			Box:        image.Rect(left, top, left+width, top+height),
			Confidence: conf,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading tesseract output: %w", err)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.page != b.page {
			return a.page < b.page
		}
		if a.block != b.block {
			return a.block < b.block
		}
		if a.par != b.par {
			return a.par < b.par
		}
		return a.line < b.line
	})

	result := &Result{Lines: make([]Line, 0, len(keys))}
	for _, key := range keys {
		result.Lines = append(result.Lines, buildLine(grouped[key]))
	}
	return result, nil
}

func buildLine(words []Word) Line {
	var sb strings.Builder
	line := Line{Words: make([]Word, 0, len(words))}
	for i, w := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		w.Start = sb.Len()
		sb.WriteString(w.Text)
		w.End = sb.Len()
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
