// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package detect

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("aleutian.review.detect")
	meter  = otel.Meter("aleutian.review.detect")
)

var (
	detectLatency     metric.Float64Histogram
	detectTotal       metric.Int64Counter
	violationsFound   metric.Int64Counter
	structuralSkipped metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		detectLatency, err = meter.Float64Histogram(
			"review_detect_duration_seconds",
			metric.WithDescription("Duration of violation detection"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		detectTotal, err = meter.Int64Counter(
			"review_detect_total",
			metric.WithDescription("Total number of detection runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		violationsFound, err = meter.Int64Counter(
			"review_violations_found_total",
			metric.WithDescription("Total number of violations found, by pass"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		structuralSkipped, err = meter.Int64Counter(
			"review_structural_skipped_total",
			metric.WithDescription("Detection runs whose structural pass was skipped on unparsable source"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startDetectSpan(ctx context.Context, sourceBytes, ruleCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Detector.Detect",
		trace.WithAttributes(
			attribute.Int("detect.source_bytes", sourceBytes),
			attribute.Int("detect.rule_count", ruleCount),
		),
	)
}

func setDetectSpanResult(span trace.Span, patternCount, structuralCount int, skipped bool) {
	span.SetAttributes(
		attribute.Int("detect.pattern_violations", patternCount),
		attribute.Int("detect.structural_violations", structuralCount),
		attribute.Bool("detect.structural_skipped", skipped),
	)
}

func recordDetectMetrics(ctx context.Context, duration time.Duration, patternCount, structuralCount int, skipped, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	detectLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
	detectTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))

	if !success {
		return
	}
	violationsFound.Add(ctx, int64(patternCount), metric.WithAttributes(attribute.String("pass", "pattern")))
	violationsFound.Add(ctx, int64(structuralCount), metric.WithAttributes(attribute.String("pass", "structural")))
	if skipped {
		structuralSkipped.Add(ctx, 1)
	}
}
