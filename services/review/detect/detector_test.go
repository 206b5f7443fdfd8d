// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

const testRules = `
- id: no_eval
  kind: pattern
  pattern: '\beval\s*\('
  severity: HIGH
  description: Use of eval
  fix_recommendation: Use ast.literal_eval.
- id: enforce_logging
  kind: pattern
  pattern: '^\s*print\s*\('
  severity: LOW
  description: Print statement
- id: nested_loops
  kind: structural
  check: nested_depth
  max_depth: 3
  severity: MEDIUM
  description: Deeply nested loops
- id: error_handling
  kind: structural
  check: empty_handler
  severity: MEDIUM
  description: Empty exception handler
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustRules(t *testing.T, doc string) []policy.Rule {
	t.Helper()
	res, err := policy.Parse([]byte(doc), quietLogger())
	require.NoError(t, err)
	require.Zero(t, res.Dropped)
	return res.Rules
}

func newTestDetector() *Detector {
	return New(WithLogger(quietLogger()))
}

type hit struct {
	rule string
	line int
}

func hits(vs []Violation) []hit {
	out := make([]hit, 0, len(vs))
	for _, v := range vs {
		out = append(out, hit{rule: v.RuleID, line: v.Line})
	}
	return out
}

func TestViolationID(t *testing.T) {
	sum := sha256.Sum256([]byte("no_eval:2:Use of eval detected"))
	assert.Equal(t, hex.EncodeToString(sum[:]), ViolationID("no_eval", 2, "Use of eval detected"))
	assert.NotEqual(t, ViolationID("no_eval", 2, "m"), ViolationID("no_eval", 3, "m"))
	assert.NotEqual(t, ViolationID("a", 1, "m"), ViolationID("b", 1, "m"))
}

func TestDetect(t *testing.T) {
	rules := mustRules(t, testRules)

	tests := []struct {
		name   string
		source string
		want   []hit
	}{
		{
			name:   "clean source",
			source: "def add(a, b):\n    return a + b\n",
			want:   []hit{},
		},
		{
			name:   "pattern violations grouped by rule then line",
			source: "print('a')\nx = eval(s)\nprint('b')\ny = eval(t)\n",
			want: []hit{
				{"no_eval", 2}, {"no_eval", 4},
				{"enforce_logging", 1}, {"enforce_logging", 3},
			},
		},
		{
			name:   "comment lines skipped, trailing comments scanned",
			source: "# eval(x)\n    #print('x')\nx = 1  # eval(y)\n",
			want:   []hit{{"no_eval", 3}},
		},
		{
			name: "three nested loops are allowed",
			source: `for a in x:
    for b in y:
        while c:
            pass
`,
			want: []hit{},
		},
		{
			name: "four nested loops flag the innermost",
			source: `for a in x:
    for b in y:
        for c in z:
            for d in w:
                pass
`,
			want: []hit{{"nested_loops", 4}},
		},
		{
			name: "five nested loops flag depth four and five",
			source: `for a in x:
    for b in y:
        for c in z:
            while d:
                for e in w:
                    pass
`,
			want: []hit{{"nested_loops", 4}, {"nested_loops", 5}},
		},
		{
			name: "sibling loops do not accumulate depth",
			source: `for a in x:
    for b in y:
        pass
    for c in z:
        for d in w:
            pass
`,
			want: []hit{},
		},
		{
			name: "loops in functions nested in loops still count",
			source: `for a in x:
    for b in y:
        def inner():
            for c in z:
                for d in w:
                    pass
`,
			want: []hit{{"nested_loops", 5}},
		},
		{
			name: "pass-only handler",
			source: `try:
    run()
except ValueError:
    pass
`,
			want: []hit{{"error_handling", 3}},
		},
		{
			name: "comment before pass is ignored",
			source: `try:
    run()
except Exception:
    # nothing to do
    pass
`,
			want: []hit{{"error_handling", 3}},
		},
		{
			name: "inline pass handler",
			source: `try:
    run()
except: pass
`,
			want: []hit{{"error_handling", 3}},
		},
		{
			name: "handler that logs is fine",
			source: `try:
    run()
except ValueError as exc:
    logger.warning("run failed: %s", exc)
`,
			want: []hit{},
		},
		{
			name: "handler with pass and another statement is fine",
			source: `try:
    run()
except ValueError:
    pass
    cleanup()
`,
			want: []hit{},
		},
		{
			name: "structural follows pattern",
			source: `try:
    eval(s)
except:
    pass
`,
			want: []hit{{"no_eval", 2}, {"error_handling", 3}},
		},
	}

	d := newTestDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.Detect(context.Background(), tt.source, rules)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, hits(got))
		})
	}
}

func TestDetect_ViolationFields(t *testing.T) {
	rules := mustRules(t, testRules)
	got, err := newTestDetector().Detect(context.Background(), "\nx = eval(s)\n", rules)
	require.NoError(t, err)
	require.Len(t, got, 1)

	v := got[0]
	assert.Equal(t, "no_eval", v.RuleID)
	assert.Equal(t, 2, v.Line)
	assert.Equal(t, "Use of eval detected", v.Message)
	assert.Equal(t, policy.SeverityHigh, v.Severity)
	assert.Equal(t, StatusOpen, v.Status)
	assert.False(t, v.IsSuppressed())
	assert.Equal(t, "Use ast.literal_eval.", v.FixRecommendation)
	assert.Equal(t, ViolationID("no_eval", 2, "Use of eval detected"), v.ID)
}

func TestDetect_Deterministic(t *testing.T) {
	rules := mustRules(t, testRules)
	source := `import os
password = eval(os.environ["X"])
for a in x:
    for b in y:
        for c in z:
            for d in w:
                print(d)
try:
    run()
except:
    pass
`
	d := newTestDetector()
	first, err := d.Detect(context.Background(), source, rules)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := d.Detect(context.Background(), source, rules)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A fresh detector yields the same ids.
	third, err := New().Detect(context.Background(), source, rules)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestDetect_InvalidSyntaxKeepsPatternPass(t *testing.T) {
	rules := mustRules(t, testRules)
	source := "def broken(:\n    eval(x)\n    for a in b\n"

	got, err := newTestDetector().Detect(context.Background(), source, rules)
	require.NoError(t, err)
	assert.Equal(t, []hit{{"no_eval", 2}}, hits(got))
}

func TestDetect_StructuralRulesEvaluateIndependently(t *testing.T) {
	rules := mustRules(t, `
- {id: strict_loops, kind: structural, check: nested_depth, max_depth: 1, severity: LOW}
- {id: nested_loops, kind: structural, check: nested_depth, severity: MEDIUM}
`)
	source := `for a in x:
    for b in y:
        for c in z:
            for d in w:
                pass
`
	got, err := newTestDetector().Detect(context.Background(), source, rules)
	require.NoError(t, err)
	assert.Equal(t, []hit{
		{"strict_loops", 2},
		{"strict_loops", 3},
		{"strict_loops", 4},
		{"nested_loops", 4},
	}, hits(got))
}

func TestDetect_NoRules(t *testing.T) {
	got, err := newTestDetector().Detect(context.Background(), "eval(x)\n", nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDetect_ContractErrors(t *testing.T) {
	rules := mustRules(t, testRules)

	t.Run("invalid utf-8", func(t *testing.T) {
		_, err := newTestDetector().Detect(context.Background(), "x = '\xff\xfe'\n", rules)
		assert.ErrorIs(t, err, ErrInvalidSource)
	})

	t.Run("too large", func(t *testing.T) {
		d := New(WithLogger(quietLogger()), WithMaxSourceBytes(16))
		_, err := d.Detect(context.Background(), strings.Repeat("x", 17), rules)
		assert.ErrorIs(t, err, ErrSourceTooLarge)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestDetector().Detect(ctx, "eval(x)\n", rules)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestDetect_Concurrent(t *testing.T) {
	rules := mustRules(t, testRules)
	source := `for a in x:
    for b in y:
        for c in z:
            for d in w:
                eval(d)
`
	d := newTestDetector()
	want, err := d.Detect(context.Background(), source, rules)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.Detect(context.Background(), source, rules)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}
