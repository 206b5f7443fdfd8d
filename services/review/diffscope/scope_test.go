// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diffscope

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
	"github.com/AleutianAI/PolicyReview/services/review/risk"
)

func TestAlign(t *testing.T) {
	tests := []struct {
		name        string
		original    string
		modified    string
		wantAdded   []int
		wantRemoved int
	}{
		{
			name:      "append a line",
			original:  "a=1\nb=2\n",
			modified:  "a=1\nb=2\nc=3\n",
			wantAdded: []int{3},
		},
		{
			name:      "identical",
			original:  "a=1\nb=2\n",
			modified:  "a=1\nb=2\n",
			wantAdded: []int{},
		},
		{
			name:      "insert at top",
			original:  "b=2\n",
			modified:  "a=1\nb=2\n",
			wantAdded: []int{1},
		},
		{
			name:        "remove a line",
			original:    "a=1\nb=2\nc=3\n",
			modified:    "a=1\nc=3\n",
			wantAdded:   []int{},
			wantRemoved: 1,
		},
		{
			name:        "change a line",
			original:    "a=1\nb=2\nc=3\n",
			modified:    "a=1\nb=20\nc=3\n",
			wantAdded:   []int{2},
			wantRemoved: 1,
		},
		{
			name:        "removal before addition shifts nothing",
			original:    "x\na\nb\n",
			modified:    "a\nb\ny\n",
			wantAdded:   []int{3},
			wantRemoved: 1,
		},
		{
			name:      "from empty",
			original:  "",
			modified:  "a\nb\n",
			wantAdded: []int{1, 2},
		},
		{
			name:      "crlf matches lf",
			original:  "a=1\r\nb=2\r\n",
			modified:  "a=1\nb=2\nc=3",
			wantAdded: []int{3},
		},
		{
			name:      "trailing newline is not a line",
			original:  "a=1",
			modified:  "a=1\n",
			wantAdded: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Align(tt.original, tt.modified)
			assert.Equal(t, tt.wantAdded, got.AddedLines)
			assert.Equal(t, len(tt.wantAdded), got.LinesAdded)
			assert.Equal(t, got.LinesAdded, got.LinesModified)
			assert.Equal(t, tt.wantRemoved, got.LinesRemoved)
		})
	}
}

func TestAlignmentContains(t *testing.T) {
	a := Alignment{AddedLines: []int{2, 5, 9}}
	assert.True(t, a.Contains(5))
	assert.False(t, a.Contains(4))
	assert.False(t, a.Contains(10))
	assert.False(t, Alignment{}.Contains(1))
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"a", []string{"a"}},
		{"a\n", []string{"a"}},
		{"a\n\nb", []string{"a", "", "b"}},
		{"a\r\nb\rc\n", []string{"a", "b", "c"}},
		{"a\u2028b", []string{"a", "b"}},
		{"\n", []string{""}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitLines(tt.in), "%q", tt.in)
	}
}

const scopeRules = `
- {id: letters, kind: pattern, pattern: '^[ac]=', severity: LOW, description: Marked assignment}
`

func scopeFixture(t *testing.T) (*Scoper, []policy.Rule) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	res, err := policy.Parse([]byte(scopeRules), logger)
	require.NoError(t, err)
	return NewScoper(detect.New(detect.WithLogger(logger))), res.Rules
}

func TestScope_AddedLineOnly(t *testing.T) {
	s, rules := scopeFixture(t)

	res, err := s.Scope(context.Background(), "a=1\nb=2\n", "a=1\nb=2\nc=3\n", rules, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Alignment.LinesAdded)
	assert.Equal(t, 0, res.Alignment.LinesRemoved)

	require.Len(t, res.Modified, 2)
	require.Len(t, res.Scoped, 1)
	assert.Equal(t, 3, res.Scoped[0].Line)
	for _, v := range res.Scoped {
		assert.NotEqual(t, 1, v.Line)
	}

	assert.Equal(t, 95, res.ScopedRisk.Score)
	assert.Equal(t, 95, res.OriginalRisk.Score)
	assert.Equal(t, 90, res.ModifiedRisk.Score)
	assert.Equal(t, -5, res.RiskDelta)
}

func TestScope_DeltaWithoutScopedViolations(t *testing.T) {
	s, rules := scopeFixture(t)

	// The removal improves the file but adds nothing in scope.
	res, err := s.Scope(context.Background(), "a=1\nb=2\nc=3\n", "b=2\nc=3\n", rules, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Scoped)
	assert.Equal(t, risk.MaxScore, res.ScopedRisk.Score)
	assert.Equal(t, 5, res.RiskDelta)
}

func TestScope_MarkAppliesToBothVersions(t *testing.T) {
	s, rules := scopeFixture(t)

	mark := func(vs []detect.Violation) {
		for i := range vs {
			vs[i].Status = detect.StatusFalsePositive
		}
	}
	res, err := s.Scope(context.Background(), "a=1\n", "a=1\nc=3\n", rules, mark)
	require.NoError(t, err)
	require.Len(t, res.Scoped, 1)
	assert.Equal(t, detect.StatusFalsePositive, res.Scoped[0].Status)
	assert.Equal(t, 100, res.ScopedRisk.Score)
	assert.Equal(t, 0, res.RiskDelta)
}

type failingDetector struct{ err error }

func (f failingDetector) Detect(context.Context, string, []policy.Rule) ([]detect.Violation, error) {
	return nil, f.err
}

func TestScope_DetectorError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewScoper(failingDetector{err: boom}).Scope(context.Background(), "a", "b", nil, nil)
	assert.ErrorIs(t, err, boom)
}
