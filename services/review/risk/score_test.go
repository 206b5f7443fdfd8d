// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

func v(rule string, sev policy.Severity, status detect.Status) detect.Violation {
	return detect.Violation{RuleID: rule, Severity: sev, Status: status}
}

func open(rule string, sev policy.Severity) detect.Violation {
	return v(rule, sev, detect.StatusOpen)
}

func TestScore(t *testing.T) {
	tests := []struct {
		name       string
		violations []detect.Violation
		wantScore  int
		wantLevel  Level
	}{
		{name: "no violations", violations: nil, wantScore: 100, wantLevel: LevelLow},
		{name: "one high", violations: []detect.Violation{open("a", policy.SeverityHigh)}, wantScore: 80, wantLevel: LevelLow},
		{
			name:       "high and medium",
			violations: []detect.Violation{open("a", policy.SeverityHigh), open("b", policy.SeverityMedium)},
			wantScore:  70,
			wantLevel:  LevelMedium,
		},
		{
			name: "unknown severity weighs five",
			violations: []detect.Violation{
				open("a", policy.Severity("CRITICAL")),
				open("b", policy.SeverityLow),
			},
			wantScore: 90,
			wantLevel: LevelLow,
		},
		{
			name: "false positives are free",
			violations: []detect.Violation{
				v("a", policy.SeverityHigh, detect.StatusFalsePositive),
				v("a", policy.SeverityHigh, detect.StatusFalsePositive),
			},
			wantScore: 100,
			wantLevel: LevelLow,
		},
		{
			name: "clamped at zero",
			violations: []detect.Violation{
				open("a", policy.SeverityHigh), open("a", policy.SeverityHigh),
				open("a", policy.SeverityHigh), open("a", policy.SeverityHigh),
				open("a", policy.SeverityHigh), open("a", policy.SeverityHigh),
			},
			wantScore: 0,
			wantLevel: LevelHigh,
		},
		{
			name: "boundary fifty is medium",
			violations: []detect.Violation{
				open("a", policy.SeverityHigh), open("a", policy.SeverityHigh),
				open("b", policy.SeverityMedium),
			},
			wantScore: 50,
			wantLevel: LevelMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.violations)
			assert.Equal(t, tt.wantScore, got.Score)
			assert.Equal(t, tt.wantLevel, got.Level)
		})
	}
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		score int
		want  Level
	}{
		{100, LevelLow}, {80, LevelLow}, {79, LevelMedium},
		{50, LevelMedium}, {49, LevelHigh}, {0, LevelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.score), "score %d", tt.score)
	}
}

func TestScore_Properties(t *testing.T) {
	severities := []policy.Severity{policy.SeverityHigh, policy.SeverityMedium, policy.SeverityLow, "INFO"}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 200; round++ {
		n := rng.Intn(12)
		vs := make([]detect.Violation, 0, n)
		for i := 0; i < n; i++ {
			status := detect.StatusOpen
			if rng.Intn(4) == 0 {
				status = detect.StatusFalsePositive
			}
			vs = append(vs, v("r", severities[rng.Intn(len(severities))], status))
		}

		base := Score(vs)
		assert.GreaterOrEqual(t, base.Score, 0)
		assert.LessOrEqual(t, base.Score, 100)

		// Order does not matter.
		shuffled := append([]detect.Violation(nil), vs...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		assert.Equal(t, base, Score(shuffled))

		// Adding an unsuppressed violation never raises the score.
		more := append(append([]detect.Violation(nil), vs...), open("r", severities[rng.Intn(len(severities))]))
		assert.LessOrEqual(t, Score(more).Score, base.Score)

		// Suppressing everything restores the maximum.
		suppressed := make([]detect.Violation, len(vs))
		for i, x := range vs {
			x.Status = detect.StatusFalsePositive
			suppressed[i] = x
		}
		assert.Equal(t, MaxScore, Score(suppressed).Score)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]detect.Violation{
		open("no_eval", policy.SeverityHigh),
		open("no_eval", policy.SeverityHigh),
		open("enforce_logging", policy.SeverityLow),
		v("no_secrets", policy.SeverityHigh, detect.StatusFalsePositive),
		open("blocking_calls", policy.SeverityMedium),
	})

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Suppressed)
	assert.Equal(t, map[string]int{"HIGH": 2, "LOW": 1, "MEDIUM": 1}, s.BySeverity)
	assert.Equal(t, []RuleCount{
		{RuleID: "no_eval", Count: 2},
		{RuleID: "blocking_calls", Count: 1},
		{RuleID: "enforce_logging", Count: 1},
	}, s.ByRule)

	empty := Summarize(nil)
	assert.Zero(t, empty.Total)
	assert.Empty(t, empty.ByRule)
}
