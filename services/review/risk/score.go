// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk turns violations into a bounded risk score.
package risk

import (
	"sort"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

// Level is the risk band of a score.
type Level string

const (
	LevelLow    Level = "LOW_RISK"
	LevelMedium Level = "MEDIUM_RISK"
	LevelHigh   Level = "HIGH_RISK"
)

// MaxScore is the score of source with no unsuppressed violations.
const MaxScore = 100

// Severity weights. Severities outside HIGH, MEDIUM and LOW weigh
// WeightUnknown.
const (
	WeightHigh    = 20
	WeightMedium  = 10
	WeightLow     = 5
	WeightUnknown = 5
)

// Assessment is a derived score and its level.
type Assessment struct {
	Score int   `json:"risk_score"`
	Level Level `json:"risk_level"`
}

// Weight returns the deduction for one violation of severity s.
func Weight(s policy.Severity) int {
	switch s {
	case policy.SeverityHigh:
		return WeightHigh
	case policy.SeverityMedium:
		return WeightMedium
	case policy.SeverityLow:
		return WeightLow
	default:
		return WeightUnknown
	}
}

// Score starts at MaxScore and subtracts the weight of every violation not
// marked FALSE_POSITIVE, never going below zero. The result does not depend
// on the order of violations.
func Score(violations []detect.Violation) Assessment {
	deduction := 0
	for _, v := range violations {
		if v.IsSuppressed() {
			continue
		}
		deduction += Weight(v.Severity)
		if deduction >= MaxScore {
			deduction = MaxScore
			break
		}
	}
	score := MaxScore - deduction
	return Assessment{Score: score, Level: LevelFor(score)}
}

// LevelFor maps a score to its level: >=80 low, 50..79 medium, <50 high.
func LevelFor(score int) Level {
	switch {
	case score >= 80:
		return LevelLow
	case score >= 50:
		return LevelMedium
	default:
		return LevelHigh
	}
}

// Summary counts violations for audit output.
type Summary struct {
	Total      int            `json:"total"`
	Suppressed int            `json:"suppressed"`
	BySeverity map[string]int `json:"by_severity"`
	ByRule     []RuleCount    `json:"by_rule"`
}

// RuleCount is the number of unsuppressed violations of one rule.
type RuleCount struct {
	RuleID string `json:"rule_id"`
	Count  int    `json:"count"`
}

// Summarize counts unsuppressed violations by severity and by rule. Rules
// are ordered by descending count, then id.
func Summarize(violations []detect.Violation) Summary {
	s := Summary{BySeverity: make(map[string]int)}
	byRule := make(map[string]int)
	for _, v := range violations {
		if v.IsSuppressed() {
			s.Suppressed++
			continue
		}
		s.Total++
		s.BySeverity[string(v.Severity)]++
		byRule[v.RuleID]++
	}

	s.ByRule = make([]RuleCount, 0, len(byRule))
	for id, n := range byRule {
		s.ByRule = append(s.ByRule, RuleCount{RuleID: id, Count: n})
	}
	sort.Slice(s.ByRule, func(i, j int) bool {
		if s.ByRule[i].Count != s.ByRule[j].Count {
			return s.ByRule[i].Count > s.ByRule[j].Count
		}
		return s.ByRule[i].RuleID < s.ByRule[j].RuleID
	})
	return s
}
