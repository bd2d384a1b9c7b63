// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shroud/internal/detect"
	"shroud/internal/extract"
	"shroud/internal/scan"
)

func TestNewPlanKeepsConfirmedInOrder(t *testing.T) {
	doc := &extract.Document{Target: scan.ScanTarget{Path: "a.txt"}}
	cands := []detect.Candidate{
		{Text: "c", SpanIndex: 1, Start: 0, Verdict: detect.Confirmed},
		{Text: "b", SpanIndex: 0, Start: 9, Verdict: detect.FailOpen},
		{Text: "x", SpanIndex: 0, Start: 5, Verdict: detect.Rejected},
		{Text: "a", SpanIndex: 0, Start: 1, Verdict: detect.Confirmed},
	}
	plan := NewPlan(doc, cands)
	require.Len(t, plan.Candidates, 3)
	assert.Equal(t, "a", plan.Candidates[0].Text)
	assert.Equal(t, "b", plan.Candidates[1].Text)
	assert.Equal(t, "c", plan.Candidates[2].Text)
	assert.False(t, plan.Empty())
	assert.Equal(t, "a.txt", plan.Target.Path)
	assert.NoError(t, plan.Close())

	assert.True(t, NewPlan(doc, cands[2:3]).Empty())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get(scan.PDF)
	assert.Error(t, err)
}
