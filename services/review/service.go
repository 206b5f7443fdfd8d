// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/diffscope"
	"github.com/AleutianAI/PolicyReview/services/review/feedback"
	"github.com/AleutianAI/PolicyReview/services/review/observability"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
	"github.com/AleutianAI/PolicyReview/services/review/risk"
	"github.com/AleutianAI/PolicyReview/services/review/telemetry"
)

const tracerName = "aleutian.review.service"

var validate = validator.New()

// FeedbackStore is the subset of the feedback store the service uses.
type FeedbackStore interface {
	Submit(ctx context.Context, rec feedback.Record) (bool, error)
	FalsePositives(ctx context.Context, userID string) (map[string]struct{}, error)
	Stats(ctx context.Context) (feedback.Stats, error)
}

// Service runs reviews against the active rule snapshot.
//
// Thread Safety: Safe for concurrent use. Each call works on its own
// violation slices; the only shared state is the registry snapshot.
type Service struct {
	registry *policy.Registry
	detector *detect.Detector
	scoper   *diffscope.Scoper
	feedback FeedbackStore
	metrics  *observability.ReviewMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDetector replaces the default detector.
func WithDetector(d *detect.Detector) ServiceOption {
	return func(s *Service) {
		if d != nil {
			s.detector = d
		}
	}
}

// WithFeedback enables the false-positive overlay and feedback endpoints.
func WithFeedback(store FeedbackStore) ServiceOption {
	return func(s *Service) { s.feedback = store }
}

// WithMetrics records review outcomes on m.
func WithMetrics(m *observability.ReviewMetrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service over registry.
func NewService(registry *policy.Registry, opts ...ServiceOption) *Service {
	s := &Service{
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.detector == nil {
		s.detector = detect.New(detect.WithLogger(s.logger))
	}
	s.scoper = diffscope.NewScoper(s.detector)
	s.logger = s.logger.With("component", "review_service")
	return s
}

// Review scans the whole source and scores every violation.
//
// userID selects whose false-positive verdicts are applied; empty means
// none.
func (s *Service) Review(ctx context.Context, userID string, req ReviewRequest) (*ReviewResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, wrapInvalid(err)
	}
	ctx, span := telemetry.StartSpan(ctx, tracerName, "review.Service.Review",
		trace.WithAttributes(attribute.Int("review.policies", len(req.Policies))))
	defer span.End()

	snap := s.registry.Snapshot()
	rules := snap.Select(req.Policies)

	violations, err := s.detector.Detect(ctx, *req.Code, rules)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("detect: %w", err)
	}
	if mark := s.markFor(ctx, userID); mark != nil {
		mark(violations)
	}

	assessment := risk.Score(violations)
	span.SetAttributes(
		attribute.Int("review.violations", len(violations)),
		attribute.Int("review.risk_score", assessment.Score),
	)
	if s.metrics != nil {
		s.metrics.RecordAssessment("review", assessment.Score, violations)
	}

	return &ReviewResponse{
		RiskScore:  assessment.Score,
		RiskLevel:  assessment.Level,
		Violations: violations,
		Audit:      s.audit(snap, req.FileName, DefaultReviewFile, violations, nil),
	}, nil
}

// ReviewDiff scans both versions and scores the violations on added lines.
func (s *Service) ReviewDiff(ctx context.Context, userID string, req DiffReviewRequest) (*DiffReviewResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, wrapInvalid(err)
	}
	resp, err := s.scope(ctx, userID, *req.OriginalCode, *req.ModifiedCode, req.Policies, fileName(req.FileName, DefaultDiffFile))
	if err != nil {
		return nil, err
	}
	patch, err := diffscope.UnifiedDiff(*req.OriginalCode, *req.ModifiedCode, req.FileName)
	if err != nil {
		s.logger.Warn("Failed to render patch", "error", err)
	}
	resp.Patch = patch
	return resp, nil
}

// ReviewPatch applies a unified diff to the original and reviews the
// result like ReviewDiff.
func (s *Service) ReviewPatch(ctx context.Context, userID string, req PatchReviewRequest) (*DiffReviewResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, wrapInvalid(err)
	}
	modified, err := diffscope.ApplyPatch(*req.OriginalCode, *req.Patch)
	if err != nil {
		return nil, fmt.Errorf("apply patch: %w", err)
	}
	resp, err := s.scope(ctx, userID, *req.OriginalCode, modified, req.Policies, fileName(req.FileName, DefaultPatchFile))
	if err != nil {
		return nil, err
	}
	resp.Patch = *req.Patch
	return resp, nil
}

func (s *Service) scope(ctx context.Context, userID, original, modified string, policies []string, file string) (*DiffReviewResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "review.Service.Scope",
		trace.WithAttributes(attribute.Int("review.policies", len(policies))))
	defer span.End()

	snap := s.registry.Snapshot()
	rules := snap.Select(policies)

	result, err := s.scoper.Scope(ctx, original, modified, rules, s.markFor(ctx, userID))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("scope: %w", err)
	}

	meta := DiffMetadata{
		LinesAdded:    result.Alignment.LinesAdded,
		LinesModified: result.Alignment.LinesModified,
		LinesRemoved:  result.Alignment.LinesRemoved,
	}
	span.SetAttributes(
		attribute.Int("review.lines_added", meta.LinesAdded),
		attribute.Int("review.scoped_violations", len(result.Scoped)),
		attribute.Int("review.risk_delta", result.RiskDelta),
	)
	if s.metrics != nil {
		s.metrics.RecordAssessment("diff", result.ScopedRisk.Score, result.Scoped)
	}

	return &DiffReviewResponse{
		ReviewResponse: ReviewResponse{
			RiskScore:  result.ScopedRisk.Score,
			RiskLevel:  result.ScopedRisk.Level,
			Violations: result.Scoped,
			Audit:      s.audit(snap, file, file, result.Scoped, &meta),
		},
		DiffMetadata:      meta,
		RiskDelta:         result.RiskDelta,
		OriginalRiskScore: result.OriginalRisk.Score,
		NewRiskScore:      result.ModifiedRisk.Score,
	}, nil
}

// SubmitFeedback stores userID's verdict on one violation.
func (s *Service) SubmitFeedback(ctx context.Context, userID string, req FeedbackRequest) (*FeedbackResponse, error) {
	if s.feedback == nil {
		return nil, ErrFeedbackDisabled
	}
	if userID == "" {
		return nil, ErrMissingUser
	}
	rec := feedback.Record{
		ViolationID: req.ViolationID,
		RuleID:      req.RuleID,
		UserID:      userID,
		Type:        req.Type,
		Comment:     req.Comment,
	}
	created, err := s.feedback.Submit(ctx, rec)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordFeedback(string(req.Type))
	}
	stored := rec
	stored.Timestamp = s.now().UTC()
	return &FeedbackResponse{Created: created, Record: stored}, nil
}

// FeedbackStats counts stored verdicts across all users.
func (s *Service) FeedbackStats(ctx context.Context) (feedback.Stats, error) {
	if s.feedback == nil {
		return feedback.Stats{}, ErrFeedbackDisabled
	}
	return s.feedback.Stats(ctx)
}

// Rules returns the active snapshot.
func (s *Service) Rules() *policy.Snapshot {
	return s.registry.Snapshot()
}

// Health reports the registry state.
func (s *Service) Health() HealthResponse {
	snap := s.registry.Snapshot()
	return HealthResponse{
		Status:       "healthy",
		RulesVersion: snap.Version,
		RulesActive:  snap.Len(),
		RulesSource:  snap.Source,
		Feedback:     s.feedback != nil,
		Time:         s.now().UTC(),
	}
}

// markFor returns a hook that marks userID's false positives, or nil when
// there is nothing to apply. Lookup failures leave scores unsuppressed.
func (s *Service) markFor(ctx context.Context, userID string) diffscope.MarkFunc {
	if s.feedback == nil || userID == "" {
		return nil
	}
	fps, err := s.feedback.FalsePositives(ctx, userID)
	if err != nil {
		s.logger.Warn("Feedback lookup failed, scoring without overlay",
			"user_id", userID, "error", err)
		return nil
	}
	if len(fps) == 0 {
		return nil
	}
	return func(violations []detect.Violation) {
		for i := range violations {
			if _, ok := fps[violations[i].ID]; ok {
				violations[i].Status = detect.StatusFalsePositive
			}
		}
	}
}

func (s *Service) audit(snap *policy.Snapshot, file, fallback string, violations []detect.Violation, meta *DiffMetadata) Audit {
	var version uint64
	if snap != nil {
		version = snap.Version
	}
	return Audit{
		Timestamp:    s.now().Format(AuditTimeLayout),
		File:         fileName(file, fallback),
		RulesVersion: version,
		Summary:      risk.Summarize(violations),
		DiffMetadata: meta,
	}
}

func wrapInvalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

func fileName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
