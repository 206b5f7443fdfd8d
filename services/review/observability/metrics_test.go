// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

func TestReviewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReviewMetrics(reg)

	m.RecordRequest(EndpointReview, true)
	m.RecordRequest(EndpointReview, true)
	m.RecordRequest(EndpointDiff, false)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("review", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("diff", "error")))

	m.RecordAssessment("review", 70, []detect.Violation{
		{Severity: policy.SeverityHigh, Status: detect.StatusOpen},
		{Severity: policy.SeverityMedium, Status: detect.StatusFalsePositive},
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ViolationsTotal.WithLabelValues("HIGH", "OPEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ViolationsTotal.WithLabelValues("MEDIUM", "FALSE_POSITIVE")))

	snap := &policy.Snapshot{Rules: make([]policy.Rule, 4), Dropped: 2}
	m.RecordSnapshot(snap)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RulesActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RulesDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleReloadsTotal))

	m.RecordFeedback("FALSE_POSITIVE")
	m.RecordRateLimited()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackTotal.WithLabelValues("FALSE_POSITIVE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitedTotal))

	n, err := testutil.GatherAndCount(reg, "aleutian_review_risk_score")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDefault_IsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
