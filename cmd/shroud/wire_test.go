// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"shroud/internal/detect"
	"shroud/internal/extract"
	"shroud/internal/recheck"
	"shroud/internal/resilience"
	"shroud/internal/scan"
)

type downClassifier struct{}

func (downClassifier) Classify(context.Context, recheck.Query) (bool, error) {
	return false, resilience.Transient(errors.New("service down"))
}

func TestWarnOpenBreaker(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	remote := recheck.NewRemote(downClassifier{}, recheck.Options{BreakerFailures: 1, Logger: slog.New(slog.DiscardHandler)})
	warnOpenBreaker(remote, logger)
	assert.Empty(t, buf.String())

	doc := &extract.Document{
		Target: scan.ScanTarget{Path: "/data/a.txt"},
		Spans:  []extract.Span{{Text: "SSN 123-45-6789"}},
	}
	cands := []detect.Candidate{{Category: "SSN", Text: "123-45-6789", Start: 4, End: 15}}
	remote.Recheck(context.Background(), doc, cands)

	warnOpenBreaker(remote, logger)
	assert.Contains(t, buf.String(), "classifier unavailable")
	assert.Contains(t, buf.String(), "breaker=open")

	buf.Reset()
	warnOpenBreaker(nil, logger)
	assert.Empty(t, buf.String())
}
