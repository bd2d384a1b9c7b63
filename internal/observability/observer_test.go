// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTimingLogsRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := New(LevelMetrics, logger, "run-1")

	done := obs.StartTiming("extract", "ocr", "/tmp/a.png")
	done(false, Stats{Err: errors.New("tesseract missing")})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "stage complete", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "extract", rec["stage"])
	assert.Equal(t, "/tmp/a.png", rec["file"])
	assert.Equal(t, false, rec["success"])
	assert.Equal(t, "tesseract missing", rec["error"])
	assert.Equal(t, "run-1", rec["run_id"])
}

func TestObserverOffAndNilAreSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	New(LevelOff, logger, "r").StartTiming("detect", "rules", "x")(true, Stats{})
	var nilObs *Observer
	nilObs.StartTiming("detect", "rules", "x")(true, Stats{})
	nilObs.LogOperation(OperationData{})

	assert.Empty(t, buf.String())
}

func TestDebugObserverSteps(t *testing.T) {
	var out, logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	obs := New(LevelMetrics, logger, "r")
	d := obs.AttachDebug(&out)
	require.Same(t, d, obs.Debug)

	finish := obs.Step("redact", "image", "scan.png")
	obs.Detail("redact", "2 boxes")
	obs.Metric("redact", "padding", 4)
	finish(true, "ok")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "redact: image (scan.png)")
	assert.Contains(t, lines[1], "2 boxes")
	assert.Contains(t, lines[2], "padding = 4")
	assert.Contains(t, lines[3], "completed")

	obs.StartTiming("redact", "image", "scan.png")(true, Stats{Candidates: 2})
	assert.Contains(t, logs.String(), "candidates=2")
}

func TestDetailWithoutDebugIsSilent(t *testing.T) {
	obs := New(LevelMetrics, nil, "r")
	obs.Detail("detect", "ignored")
	obs.Metric("detect", "candidates", 1)
	var nilObs *Observer
	nilObs.Detail("detect", "ignored")
	nilObs.Metric("detect", "candidates", 1)
}

func TestNameOf(t *testing.T) {
	assert.Equal(t, "fallback", NameOf(struct{}{}, "fallback"))
	assert.Equal(t, "named", NameOf(named{}, "fallback"))
}

type named struct{}

func (named) ComponentName() string { return "named" }
