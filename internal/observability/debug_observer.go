// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package observability

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DebugObserver prints a readable step trace per file. Workers interleave, so
// every line carries the file it belongs to instead of relying on indentation.
type DebugObserver struct {
	mu     sync.Mutex
	writer io.Writer
}

// AttachDebug raises o to LevelDebug and prints step traces to writer
func (o *Observer) AttachDebug(writer io.Writer) *DebugObserver {
	d := &DebugObserver{writer: writer}
	o.level = LevelDebug
	o.Debug = d
	return d
}

// StartStep begins a processing step
func (d *DebugObserver) StartStep(component, step, filePath string) func(success bool, details string) {
	if d == nil {
		return func(bool, string) {}
	}
	start := time.Now()
	d.printf("🔄 %s: %s (%s)\n", component, step, filePath)

	return func(success bool, details string) {
		ms := time.Since(start).Milliseconds()
		if success {
			d.printf("  ✅ %s: %s completed (%dms) %s\n", component, step, ms, details)
		} else {
			d.printf("  ❌ %s: %s failed (%dms) %s\n", component, step, ms, details)
		}
	}
}

// LogDetail logs a detail within a step
func (d *DebugObserver) LogDetail(component, detail string) {
	if d == nil {
		return
	}
	d.printf("     → %s: %s\n", component, detail)
}

// LogMetric logs a metric value
func (d *DebugObserver) LogMetric(component, metric string, value any) {
	if d == nil {
		return
	}
	d.printf("     📊 %s: %s = %v\n", component, metric, value)
}

func (d *DebugObserver) printf(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.writer, format, args...)
}
