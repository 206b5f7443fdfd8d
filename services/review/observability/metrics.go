// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability defines the Prometheus metrics of the review
// service.
//
// All metrics live under the "aleutian_review" prefix:
//
//	aleutian_review_requests_total{endpoint,status}
//	aleutian_review_risk_score{mode}
//	aleutian_review_violations_total{severity,status}
//	aleutian_review_rules_active
//	aleutian_review_rules_dropped
//	aleutian_review_rule_reloads_total
//	aleutian_review_feedback_total{type}
//	aleutian_review_rate_limited_total
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

const metricsNamespace = "aleutian"

const reviewSubsystem = "review"

// Endpoint labels review requests.
type Endpoint string

const (
	EndpointReview      Endpoint = "review"
	EndpointDiff        Endpoint = "diff"
	EndpointPatch       Endpoint = "patch"
	EndpointRemediation Endpoint = "remediation"
	EndpointFeedback    Endpoint = "feedback"
)

// ReviewMetrics holds the review service collectors.
type ReviewMetrics struct {
	// RequestsTotal counts requests by endpoint and status (success, error).
	RequestsTotal *prometheus.CounterVec

	// RiskScore observes reported scores by mode (review, diff).
	RiskScore *prometheus.HistogramVec

	// ViolationsTotal counts reported violations by severity and status.
	ViolationsTotal *prometheus.CounterVec

	RulesActive      prometheus.Gauge
	RulesDropped     prometheus.Gauge
	RuleReloadsTotal prometheus.Counter

	// FeedbackTotal counts submitted verdicts by type.
	FeedbackTotal *prometheus.CounterVec

	RateLimitedTotal prometheus.Counter
}

var (
	defaultMetrics *ReviewMetrics
	defaultOnce    sync.Once
)

// Default returns the metrics registered with the default Prometheus
// registry, creating them on first use.
func Default() *ReviewMetrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewReviewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// NewReviewMetrics creates and registers the collectors with reg.
func NewReviewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	factory := promauto.With(reg)
	return &ReviewMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "requests_total",
				Help:      "Total number of review requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),

		RiskScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "risk_score",
				Help:      "Reported risk scores",
				Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
			[]string{"mode"},
		),

		ViolationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "violations_total",
				Help:      "Total reported violations by severity and status",
			},
			[]string{"severity", "status"},
		),

		RulesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: reviewSubsystem,
			Name:      "rules_active",
			Help:      "Number of rules in the active snapshot",
		}),

		RulesDropped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: reviewSubsystem,
			Name:      "rules_dropped",
			Help:      "Number of entries rejected by the last rule load",
		}),

		RuleReloadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: reviewSubsystem,
			Name:      "rule_reloads_total",
			Help:      "Total number of rule snapshots published",
		}),

		FeedbackTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "feedback_total",
				Help:      "Total feedback submissions by type",
			},
			[]string{"type"},
		),

		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: reviewSubsystem,
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		}),
	}
}

// RecordRequest counts one request.
func (m *ReviewMetrics) RecordRequest(endpoint Endpoint, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(string(endpoint), status).Inc()
}

// RecordAssessment observes a reported score and its violations.
func (m *ReviewMetrics) RecordAssessment(mode string, score int, violations []detect.Violation) {
	m.RiskScore.WithLabelValues(mode).Observe(float64(score))
	for _, v := range violations {
		m.ViolationsTotal.WithLabelValues(string(v.Severity), string(v.Status)).Inc()
	}
}

// RecordSnapshot tracks a newly published rule snapshot. It has the shape
// of a policy.Registry reload hook.
func (m *ReviewMetrics) RecordSnapshot(snap *policy.Snapshot) {
	m.RuleReloadsTotal.Inc()
	m.RulesActive.Set(float64(snap.Len()))
	m.RulesDropped.Set(float64(snap.Dropped))
}

// RecordFeedback counts one feedback submission.
func (m *ReviewMetrics) RecordFeedback(feedbackType string) {
	m.FeedbackTotal.WithLabelValues(feedbackType).Inc()
}

// RecordRateLimited counts one rejected request.
func (m *ReviewMetrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}
