// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/PolicyReview/pkg/ux"
	"github.com/AleutianAI/PolicyReview/services/review"
	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
	"github.com/AleutianAI/PolicyReview/services/review/risk"
)

func levelTone(level risk.Level) ux.Tone {
	switch level {
	case risk.LevelLow:
		return ux.ToneSuccess
	case risk.LevelMedium:
		return ux.ToneWarning
	default:
		return ux.ToneError
	}
}

func severityTone(v detect.Violation) ux.Tone {
	if v.IsSuppressed() {
		return ux.ToneMuted
	}
	switch v.Severity {
	case policy.SeverityHigh:
		return ux.ToneError
	case policy.SeverityMedium:
		return ux.ToneWarning
	default:
		return ux.ToneNone
	}
}

func renderReview(p *ux.Printer, resp *review.ReviewResponse) error {
	if p.Mode() == ux.ModeJSON {
		return p.JSON(resp)
	}
	p.Title("Policy review: " + resp.Audit.File)
	renderAssessment(p, resp)
	return nil
}

func renderDiff(p *ux.Printer, resp *review.DiffReviewResponse) error {
	if p.Mode() == ux.ModeJSON {
		return p.JSON(resp)
	}
	p.Title("Diff review: " + resp.Audit.File)
	p.Field("Lines added", resp.DiffMetadata.LinesAdded)
	p.Field("Lines removed", resp.DiffMetadata.LinesRemoved)
	p.Field("Original score", resp.OriginalRiskScore)
	p.Field("New score", resp.NewRiskScore)

	tone := ux.ToneNone
	switch {
	case resp.RiskDelta < 0:
		tone = ux.ToneError
	case resp.RiskDelta > 0:
		tone = ux.ToneSuccess
	}
	p.FieldTone("Risk delta", fmt.Sprintf("%+d", resp.RiskDelta), tone)
	renderAssessment(p, &resp.ReviewResponse)
	return nil
}

func renderAssessment(p *ux.Printer, resp *review.ReviewResponse) {
	p.FieldTone("Risk score", resp.RiskScore, levelTone(resp.RiskLevel))
	p.FieldTone("Risk level", resp.RiskLevel, levelTone(resp.RiskLevel))
	p.Field("Rules version", resp.Audit.RulesVersion)
	p.Field("Reviewed at", resp.Audit.Timestamp)

	if len(resp.Violations) == 0 {
		p.Line("No violations found", ux.ToneSuccess)
		return
	}
	p.Line("", ux.ToneNone)
	for _, v := range resp.Violations {
		line := fmt.Sprintf("  line %-4d %-6s %s [%s]", v.Line, v.Severity, v.Message, v.RuleID)
		if v.IsSuppressed() {
			line += " (false positive)"
		}
		p.Line(line, severityTone(v))
		if v.FixRecommendation != "" && !v.IsSuppressed() {
			p.Line("             fix: "+v.FixRecommendation, ux.ToneMuted)
		}
	}
}

func renderRules(p *ux.Printer, snap *policy.Snapshot) error {
	if p.Mode() == ux.ModeJSON {
		return p.JSON(snap)
	}
	p.Title(fmt.Sprintf("Active rules (%d) from %s", snap.Len(), snap.Source))
	for _, r := range snap.Rules {
		detail := r.Pattern
		if r.Kind == policy.KindStructural {
			detail = string(r.Check)
			if r.Check == policy.CheckNestedDepth {
				detail += fmt.Sprintf(" > %d", r.MaxDepth)
			}
		}
		p.Line(fmt.Sprintf("  %-18s %-6s %-10s %s", r.ID, r.Severity, r.Kind, detail), ux.ToneNone)
	}
	return nil
}

// verifyResult is the JSON shape of "rules verify".
type verifyResult struct {
	Valid       bool     `json:"valid"`
	Source      string   `json:"source"`
	Fingerprint string   `json:"fingerprint"`
	Version     uint64   `json:"version"`
	Rules       int      `json:"rules"`
	Dropped     int      `json:"dropped"`
	RuleIDs     []string `json:"rule_ids"`
}

func renderVerify(p *ux.Printer, snap *policy.Snapshot) error {
	ids := make([]string, len(snap.Rules))
	for i, r := range snap.Rules {
		ids[i] = r.ID
	}
	res := verifyResult{
		Valid:       snap.Len() > 0 && snap.Dropped == 0,
		Source:      snap.Source,
		Fingerprint: snap.Fingerprint,
		Version:     snap.Version,
		Rules:       snap.Len(),
		Dropped:     snap.Dropped,
		RuleIDs:     ids,
	}
	if p.Mode() == ux.ModeJSON {
		return p.JSON(res)
	}

	p.Title("Rule verification")
	p.Field("Source", res.Source)
	p.Field("Fingerprint", res.Fingerprint)
	p.Field("Rules", res.Rules)
	dropTone := ux.ToneNone
	if res.Dropped > 0 {
		dropTone = ux.ToneWarning
	}
	p.FieldTone("Dropped", res.Dropped, dropTone)
	p.Field("Rule ids", strings.Join(ids, ", "))
	if res.Valid {
		p.Line("Rules verified", ux.ToneSuccess)
	} else {
		p.Line("Rules failed verification", ux.ToneError)
	}
	return nil
}
