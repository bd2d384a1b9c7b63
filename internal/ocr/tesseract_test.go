// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ocr

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t800\t400\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t20\t30\t300\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t20\t30\t50\t20\t95.5\tCard:\n" +
	"5\t1\t1\t1\t1\t2\t80\t30\t240\t22\t91.0\t4111111111111111\n" +
	"5\t1\t2\t1\t1\t1\t20\t90\t40\t20\t12.0\t~~\n" +
	"5\t1\t2\t1\t1\t2\t70\t90\t60\t20\t88.0\tHello\n" +
	"5\t1\t1\t1\t2\t1\t20\t60\t60\t20\t90.0\tsecond\n" +
	"5\t1\t1\t1\t2\t2\t90\t60\t40\t20\t90.0\t \n"

func TestParseTSVGroupsWordsIntoLines(t *testing.T) {
	res, err := ParseTSV(strings.NewReader(sampleTSV), 30)
	require.NoError(t, err)
	require.Len(t, res.Lines, 3)

	first := res.Lines[0]
	assert.Equal(t, "Card: 4111111111111111", first.Text)
	assert.Equal(t, image.Rect(20, 30, 320, 52), first.Box)
	require.Len(t, first.Words, 2)
	assert.Equal(t, "4111111111111111", first.Text[first.Words[1].Start:first.Words[1].End])
	assert.Equal(t, image.Rect(80, 30, 320, 52), first.Words[1].Box)

	// block 1 line 2 comes before block 2
	assert.Equal(t, "second", res.Lines[1].Text)
	// the low confidence word is dropped
	assert.Equal(t, "Hello", res.Lines[2].Text)

	assert.Equal(t, "Card: 4111111111111111\nsecond\nHello", res.Text())
}

func TestParseTSVEmpty(t *testing.T) {
	res, err := ParseTSV(strings.NewReader(""), 0)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Equal(t, "", res.Text())
}

func TestTesseractRecognizeWithScriptedBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	dir := t.TempDir()
	tsvPath := filepath.Join(dir, "out.tsv")
	require.NoError(t, os.WriteFile(tsvPath, []byte(sampleTSV), 0o644))
	script := "#!/bin/sh\nif [ \"$1\" = \"--version\" ]; then echo 'tesseract 5.3.0'; exit 0; fi\ncat " + tsvPath + "\n"
	bin := filepath.Join(dir, "tesseract")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	engine, err := NewTesseract(TesseractOptions{Path: bin, DPI: 300, ExtraArgs: "--psm 3", MinConfidence: 30})
	require.NoError(t, err)

	version, err := engine.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tesseract 5.3.0", version)

	res, err := engine.Recognize(context.Background(), filepath.Join(dir, "img.png"))
	require.NoError(t, err)
	assert.Len(t, res.Lines, 3)
}

func TestTesseractFailureIsUnavailable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "tesseract")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho 'Error opening data file' >&2\nexit 1\n"), 0o755))

	engine, err := NewTesseract(TesseractOptions{Path: bin})
	require.NoError(t, err)
	_, err = engine.Recognize(context.Background(), "x.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEngineUnavailable))
	assert.Contains(t, err.Error(), "Error opening data file")
}

func TestNewTesseractRejectsBadArgs(t *testing.T) {
	_, err := NewTesseract(TesseractOptions{Path: os.Args[0], ExtraArgs: "--psm \"3"})
	require.Error(t, err)
}

func TestNewTesseractMissingBinary(t *testing.T) {
	_, err := NewTesseract(TesseractOptions{Path: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEngineUnavailable))
}
