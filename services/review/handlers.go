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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/diffscope"
	"github.com/AleutianAI/PolicyReview/services/review/feedback"
	"github.com/AleutianAI/PolicyReview/services/review/observability"
	"github.com/AleutianAI/PolicyReview/services/review/telemetry"
)

// UserIDHeader carries the caller identity set by the fronting gateway.
const UserIDHeader = "X-User-ID"

// Handlers serves the review API.
type Handlers struct {
	svc     *Service
	metrics *observability.ReviewMetrics
}

// NewHandlers creates handlers for svc. metrics may be nil.
func NewHandlers(svc *Service, metrics *observability.ReviewMetrics) *Handlers {
	return &Handlers{svc: svc, metrics: metrics}
}

// HandleReview handles POST /v1/review.
//
// Response:
//
//	200 OK: ReviewResponse
//	400 Bad Request: missing code or invalid source
//	413 Request Entity Too Large: source over the detector limit
func (h *Handlers) HandleReview(c *gin.Context) {
	logger := requestLogger(c, "HandleReview")

	var req ReviewRequest
	if !bindJSON(c, logger, &req) {
		h.record(observability.EndpointReview, false)
		return
	}

	resp, err := h.svc.Review(c.Request.Context(), c.GetHeader(UserIDHeader), req)
	if err != nil {
		h.fail(c, logger, observability.EndpointReview, err)
		return
	}

	logger.Info("Review complete",
		"risk_score", resp.RiskScore,
		"risk_level", resp.RiskLevel,
		"violations", len(resp.Violations))
	h.record(observability.EndpointReview, true)
	c.JSON(http.StatusOK, resp)
}

// HandleDiff handles POST /v1/review/diff.
//
// Response:
//
//	200 OK: DiffReviewResponse
//	400 Bad Request: missing original_code or modified_code
func (h *Handlers) HandleDiff(c *gin.Context) {
	logger := requestLogger(c, "HandleDiff")

	var req DiffReviewRequest
	if !bindJSON(c, logger, &req) {
		h.record(observability.EndpointDiff, false)
		return
	}

	resp, err := h.svc.ReviewDiff(c.Request.Context(), c.GetHeader(UserIDHeader), req)
	if err != nil {
		h.fail(c, logger, observability.EndpointDiff, err)
		return
	}

	logger.Info("Diff review complete",
		"risk_score", resp.RiskScore,
		"risk_delta", resp.RiskDelta,
		"lines_added", resp.DiffMetadata.LinesAdded)
	h.record(observability.EndpointDiff, true)
	c.JSON(http.StatusOK, resp)
}

// HandlePatch handles POST /v1/review/patch.
//
// Response:
//
//	200 OK: DiffReviewResponse
//	400 Bad Request: unparseable patch
//	422 Unprocessable Entity: patch does not apply to original_code
func (h *Handlers) HandlePatch(c *gin.Context) {
	logger := requestLogger(c, "HandlePatch")

	var req PatchReviewRequest
	if !bindJSON(c, logger, &req) {
		h.record(observability.EndpointPatch, false)
		return
	}

	resp, err := h.svc.ReviewPatch(c.Request.Context(), c.GetHeader(UserIDHeader), req)
	if err != nil {
		h.fail(c, logger, observability.EndpointPatch, err)
		return
	}

	logger.Info("Patch review complete",
		"risk_score", resp.RiskScore,
		"risk_delta", resp.RiskDelta)
	h.record(observability.EndpointPatch, true)
	c.JSON(http.StatusOK, resp)
}

// HandleRemediation handles POST /v1/review/remediation.
func (h *Handlers) HandleRemediation(c *gin.Context) {
	logger := requestLogger(c, "HandleRemediation")

	var req RemediationRequest
	if !bindJSON(c, logger, &req) {
		h.record(observability.EndpointRemediation, false)
		return
	}

	suggestions, err := h.svc.Remediate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, logger, observability.EndpointRemediation, err)
		return
	}
	h.record(observability.EndpointRemediation, true)
	c.JSON(http.StatusOK, suggestions)
}

// HandleFeedback handles POST /v1/review/feedback.
//
// Response:
//
//	201 Created: first verdict for this user and violation
//	200 OK: verdict replaced
//	401 Unauthorized: no X-User-ID header
//	503 Service Unavailable: feedback store not configured
func (h *Handlers) HandleFeedback(c *gin.Context) {
	logger := requestLogger(c, "HandleFeedback")

	var req FeedbackRequest
	if !bindJSON(c, logger, &req) {
		h.record(observability.EndpointFeedback, false)
		return
	}

	resp, err := h.svc.SubmitFeedback(c.Request.Context(), c.GetHeader(UserIDHeader), req)
	if err != nil {
		h.fail(c, logger, observability.EndpointFeedback, err)
		return
	}

	logger.Info("Feedback recorded",
		"violation_id", req.ViolationID,
		"feedback_type", req.Type,
		"created", resp.Created)
	h.record(observability.EndpointFeedback, true)
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

// HandleFeedbackStats handles GET /v1/review/feedback/stats.
func (h *Handlers) HandleFeedbackStats(c *gin.Context) {
	logger := requestLogger(c, "HandleFeedbackStats")

	stats, err := h.svc.FeedbackStats(c.Request.Context())
	if err != nil {
		h.fail(c, logger, observability.EndpointFeedback, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleRules handles GET /v1/review/rules.
func (h *Handlers) HandleRules(c *gin.Context) {
	getOrCreateRequestID(c)
	c.JSON(http.StatusOK, h.svc.Rules())
}

// HandleHealth handles GET /v1/review/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Health())
}

func (h *Handlers) record(endpoint observability.Endpoint, success bool) {
	if h.metrics != nil {
		h.metrics.RecordRequest(endpoint, success)
	}
}

func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, endpoint observability.Endpoint, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "code", code)
	} else {
		logger.Warn("Request rejected", "error", err, "code", code)
	}
	h.record(endpoint, false)
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// errorStatus maps service errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, detect.ErrInvalidSource):
		return http.StatusBadRequest, "INVALID_SOURCE"
	case errors.Is(err, detect.ErrSourceTooLarge):
		return http.StatusRequestEntityTooLarge, "SOURCE_TOO_LARGE"
	case errors.Is(err, diffscope.ErrInvalidPatch):
		return http.StatusBadRequest, "INVALID_PATCH"
	case errors.Is(err, diffscope.ErrPatchMismatch):
		return http.StatusUnprocessableEntity, "PATCH_MISMATCH"
	case errors.Is(err, feedback.ErrInvalidRecord):
		return http.StatusBadRequest, "INVALID_FEEDBACK"
	case errors.Is(err, ErrMissingUser):
		return http.StatusUnauthorized, "MISSING_USER"
	case errors.Is(err, ErrFeedbackDisabled):
		return http.StatusServiceUnavailable, "FEEDBACK_DISABLED"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "CANCELED"
	default:
		return http.StatusInternalServerError, "REVIEW_FAILED"
	}
}

func bindJSON(c *gin.Context, logger *slog.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	return true
}

func requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", handler)
	if traceID := telemetry.TraceID(c.Request.Context()); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	return logger
}

// getOrCreateRequestID echoes X-Request-ID or assigns a new one.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
