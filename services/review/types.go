// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package review exposes policy review over HTTP.
//
// The Service combines the rule registry, the detector, the diff scoper
// and an optional feedback store into the review operations. Handlers map
// those operations onto gin routes under /v1/review.
package review

import (
	"time"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/feedback"
	"github.com/AleutianAI/PolicyReview/services/review/risk"
)

// Default file names reported in audit blocks when the request does not
// name one.
const (
	DefaultReviewFile = "untitled.py"
	DefaultDiffFile   = "diff_review.py"
	DefaultPatchFile  = "patch_review.py"
)

// AuditTimeLayout renders audit timestamps, e.g. "Mar 04, 2025, 02:15:09 PM".
const AuditTimeLayout = "Jan 02, 2006, 03:04:05 PM"

// ReviewRequest is the body of POST /v1/review.
type ReviewRequest struct {
	Code     *string  `json:"code" validate:"required"`
	Policies []string `json:"policies" validate:"max=256,dive,max=128"`
	FileName string   `json:"file_name,omitempty" validate:"max=256"`
}

// DiffReviewRequest is the body of POST /v1/review/diff.
type DiffReviewRequest struct {
	OriginalCode *string  `json:"original_code" validate:"required"`
	ModifiedCode *string  `json:"modified_code" validate:"required"`
	Policies     []string `json:"policies" validate:"max=256,dive,max=128"`
	FileName     string   `json:"file_name,omitempty" validate:"max=256"`
}

// PatchReviewRequest is the body of POST /v1/review/patch. Patch is a
// unified diff against OriginalCode.
type PatchReviewRequest struct {
	OriginalCode *string  `json:"original_code" validate:"required"`
	Patch        *string  `json:"patch" validate:"required"`
	Policies     []string `json:"policies" validate:"max=256,dive,max=128"`
	FileName     string   `json:"file_name,omitempty" validate:"max=256"`
}

// Audit records when and against what a review ran.
type Audit struct {
	Timestamp    string        `json:"timestamp"`
	File         string        `json:"file"`
	RulesVersion uint64        `json:"rules_version"`
	Summary      risk.Summary  `json:"summary"`
	DiffMetadata *DiffMetadata `json:"diff_metadata,omitempty"`
}

// ReviewResponse is the result of a full-source review.
type ReviewResponse struct {
	RiskScore  int                `json:"risk_score"`
	RiskLevel  risk.Level         `json:"risk_level"`
	Violations []detect.Violation `json:"violations"`
	Audit      Audit              `json:"audit"`
}

// DiffMetadata counts the edit between two versions.
type DiffMetadata struct {
	LinesAdded    int `json:"lines_added"`
	LinesModified int `json:"lines_modified"`
	LinesRemoved  int `json:"lines_removed"`
}

// DiffReviewResponse is the result of a scoped review. The embedded score
// and violations cover added lines only. OriginalRiskScore and
// NewRiskScore score both versions in full.
type DiffReviewResponse struct {
	ReviewResponse
	DiffMetadata      DiffMetadata `json:"diff_metadata"`
	RiskDelta         int          `json:"risk_delta"`
	OriginalRiskScore int          `json:"original_risk_score"`
	NewRiskScore      int          `json:"new_risk_score"`
	Patch             string       `json:"patch,omitempty"`
}

// RemediationItem names the rule of one reported violation.
type RemediationItem struct {
	RuleID string `json:"rule_id" validate:"required,max=128"`
}

// RemediationRequest is the body of POST /v1/review/remediation.
type RemediationRequest struct {
	Violations []RemediationItem `json:"violations" validate:"max=1000,dive"`
}

// Suggestion is remediation advice for one rule.
type Suggestion struct {
	RuleID     string `json:"violation_rule_id"`
	Suggestion string `json:"suggestion"`
	ExampleFix string `json:"example_fix"`
	Reason     string `json:"reason"`
}

// FeedbackRequest is the body of POST /v1/review/feedback.
type FeedbackRequest struct {
	ViolationID string        `json:"violation_id"`
	RuleID      string        `json:"policy_rule_id"`
	Type        feedback.Type `json:"feedback_type"`
	Comment     string        `json:"optional_comment,omitempty"`
}

// FeedbackResponse acknowledges a stored verdict.
type FeedbackResponse struct {
	Created bool            `json:"created"`
	Record  feedback.Record `json:"record"`
}

// HealthResponse is returned by GET /v1/review/health.
type HealthResponse struct {
	Status       string    `json:"status"`
	RulesVersion uint64    `json:"rules_version"`
	RulesActive  int       `json:"rules_active"`
	RulesSource  string    `json:"rules_source"`
	Feedback     bool      `json:"feedback_enabled"`
	Time         time.Time `json:"time"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
