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
	"fmt"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
	"github.com/AleutianAI/PolicyReview/services/review/risk"
)

// Detector finds violations in one version of the source.
type Detector interface {
	Detect(ctx context.Context, source string, rules []policy.Rule) ([]detect.Violation, error)
}

// MarkFunc updates violation statuses in place before scoring, typically
// from stored feedback.
type MarkFunc func(violations []detect.Violation)

// Result is the outcome of a scoped review.
type Result struct {
	Alignment Alignment

	// Scoped are the modified-text violations on added lines.
	Scoped []detect.Violation

	// Modified and Original are the full violation sets of each version.
	Modified []detect.Violation
	Original []detect.Violation

	// ScopedRisk is scored from Scoped alone.
	ScopedRisk risk.Assessment

	OriginalRisk risk.Assessment
	ModifiedRisk risk.Assessment

	// RiskDelta is ModifiedRisk.Score - OriginalRisk.Score, independent of
	// scoping.
	RiskDelta int
}

// Scoper reviews a change between two versions of a source.
type Scoper struct {
	detector Detector
}

// NewScoper creates a Scoper over d.
func NewScoper(d Detector) *Scoper {
	return &Scoper{detector: d}
}

// Scope detects violations in both versions, keeps the modified-text
// violations whose line was added, and scores the scoped and full sets.
//
// The line filter is an exact match against Alignment.AddedLines. A
// violation on an unchanged line next to an edit is not in scope.
//
// mark, when non-nil, is applied to both full sets before filtering and
// scoring.
func (s *Scoper) Scope(ctx context.Context, original, modified string, rules []policy.Rule, mark MarkFunc) (*Result, error) {
	alignment := Align(original, modified)

	modViolations, err := s.detector.Detect(ctx, modified, rules)
	if err != nil {
		return nil, fmt.Errorf("detect modified: %w", err)
	}
	origViolations, err := s.detector.Detect(ctx, original, rules)
	if err != nil {
		return nil, fmt.Errorf("detect original: %w", err)
	}
	if mark != nil {
		mark(modViolations)
		mark(origViolations)
	}

	scoped := Filter(modViolations, alignment)
	oldRisk := risk.Score(origViolations)
	newRisk := risk.Score(modViolations)

	return &Result{
		Alignment:    alignment,
		Scoped:       scoped,
		Modified:     modViolations,
		Original:     origViolations,
		ScopedRisk:   risk.Score(scoped),
		OriginalRisk: oldRisk,
		ModifiedRisk: newRisk,
		RiskDelta:    newRisk.Score - oldRisk.Score,
	}, nil
}

// Filter returns the violations whose line is an added line.
func Filter(violations []detect.Violation, a Alignment) []detect.Violation {
	out := make([]detect.Violation, 0, len(violations))
	for _, v := range violations {
		if a.Contains(v.Line) {
			out = append(out, v)
		}
	}
	return out
}
