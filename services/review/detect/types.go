// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package detect finds rule violations in Python source text.
//
// Detection runs two passes over the source. The pattern pass matches each
// pattern rule against every line. The structural pass parses the source
// with tree-sitter and walks the syntax tree for nested loops and empty
// exception handlers. Results are concatenated in that order.
package detect

import (
	"errors"

	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

// Status is the review state of a violation.
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusFalsePositive Status = "FALSE_POSITIVE"
)

// Fixed messages emitted by the structural pass.
const (
	MessageNestedLoops  = "Deeply nested loops detected"
	MessageEmptyHandler = "Empty except block detected"
)

// Violation is one rule match at one source line.
//
// ID is derived from RuleID, Line and Message only, so identical source and
// rule text always yield identical ids. Status is the only field expected to
// change after detection.
type Violation struct {
	ID                string          `json:"id"`
	Line              int             `json:"line"`
	Severity          policy.Severity `json:"severity"`
	Message           string          `json:"message"`
	RuleID            string          `json:"rule_id"`
	Status            Status          `json:"status"`
	RiskExplanation   string          `json:"risk_explanation,omitempty"`
	ExploitScenario   string          `json:"exploit_scenario,omitempty"`
	FixRecommendation string          `json:"fix_recommendation,omitempty"`
	SecureCodeExample string          `json:"secure_code_example,omitempty"`
}

// IsSuppressed reports whether the violation was marked a false positive.
func (v Violation) IsSuppressed() bool {
	return v.Status == StatusFalsePositive
}

// newViolation builds an OPEN violation for rule at line.
func newViolation(rule policy.Rule, line int, message string) Violation {
	return Violation{
		ID:                ViolationID(rule.ID, line, message),
		Line:              line,
		Severity:          rule.Severity,
		Message:           message,
		RuleID:            rule.ID,
		Status:            StatusOpen,
		RiskExplanation:   rule.RiskExplanation,
		ExploitScenario:   rule.ExploitScenario,
		FixRecommendation: rule.FixRecommendation,
		SecureCodeExample: rule.SecureCodeExample,
	}
}

var (
	// ErrInvalidSource is returned for source text that is not valid UTF-8.
	ErrInvalidSource = errors.New("source is not valid UTF-8")

	// ErrSourceTooLarge is returned when the source exceeds the detector limit.
	ErrSourceTooLarge = errors.New("source exceeds size limit")
)
