// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package observability records per-stage timings as structured log records.
package observability

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Level controls how much the observer emits
type Level int

const (
	LevelOff     Level = 0
	LevelMetrics Level = 1
	LevelDebug   Level = 2
)

// Observer times pipeline stages and logs one record per completed operation
type Observer struct {
	level  Level
	logger *slog.Logger
	runID  string
	seq    atomic.Int64

	// Debug is set when the observer runs at LevelDebug
	Debug *DebugObserver
}

// New creates an observer. A nil logger uses slog.Default().
func New(level Level, logger *slog.Logger, runID string) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observer{
		level:  level,
		logger: logger.With("component", "observer"),
		runID:  runID,
	}
}

// Stats is the summary attached to a completed operation
type Stats struct {
	Spans      int
	Candidates int
	Pages      int
	Err        error
}

// StartTiming returns a function that completes the timing. Safe on a nil observer.
func (o *Observer) StartTiming(component, operation, filePath string) func(success bool, stats Stats) {
	if o == nil || o.level == LevelOff {
		return func(bool, Stats) {}
	}
	start := time.Now()
	return func(success bool, stats Stats) {
		o.LogOperation(OperationData{
			Component: component,
			Operation: operation,
			FilePath:  filePath,
			Duration:  time.Since(start),
			Success:   success,
			Stats:     stats,
		})
	}
}

// OperationData describes one completed stage
type OperationData struct {
	Component string
	Operation string
	FilePath  string
	Duration  time.Duration
	Success   bool
	Stats     Stats
}

// LogOperation emits the operation record. Metrics level logs at Info, debug at Debug
// with the full stats.
func (o *Observer) LogOperation(data OperationData) {
	if o == nil || o.level == LevelOff {
		return
	}
	attrs := []slog.Attr{
		slog.String("run_id", o.runID),
		slog.Int64("seq", o.seq.Add(1)),
		slog.String("stage", data.Component),
		slog.String("operation", data.Operation),
		slog.String("file", data.FilePath),
		slog.Int64("duration_ms", data.Duration.Milliseconds()),
		slog.Bool("success", data.Success),
	}
	if data.Stats.Err != nil {
		attrs = append(attrs, slog.String("error", data.Stats.Err.Error()))
	}
	level := slog.LevelInfo
	if o.level == LevelDebug {
		level = slog.LevelDebug
		attrs = append(attrs,
			slog.Int("spans", data.Stats.Spans),
			slog.Int("candidates", data.Stats.Candidates),
			slog.Int("pages", data.Stats.Pages))
	}
	o.logger.LogAttrs(context.Background(), level, "stage complete", attrs...)
}

// Step starts a debug step when a debug observer is attached. Safe on a nil observer.
func (o *Observer) Step(component, step, filePath string) func(success bool, details string) {
	if o == nil || o.Debug == nil {
		return func(bool, string) {}
	}
	return o.Debug.StartStep(component, step, filePath)
}

// Detail adds a line to the current step trace. Safe on a nil observer.
func (o *Observer) Detail(component, detail string) {
	if o == nil {
		return
	}
	o.Debug.LogDetail(component, detail)
}

// Metric adds a value to the current step trace. Safe on a nil observer.
func (o *Observer) Metric(component, metric string, value any) {
	if o == nil {
		return
	}
	o.Debug.LogMetric(component, metric, value)
}
