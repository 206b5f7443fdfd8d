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
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

// DefaultMaxSourceBytes bounds the size of a single submission.
const DefaultMaxSourceBytes = 1 << 20

// Detector runs the pattern and structural passes.
//
// A Detector holds only configuration. All traversal state is created per
// call, so one Detector serves any number of concurrent callers.
type Detector struct {
	maxSourceBytes int
	logger         *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithMaxSourceBytes sets the size limit. Values <= 0 keep the default.
func WithMaxSourceBytes(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.maxSourceBytes = n
		}
	}
}

// WithLogger sets the detector logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{
		maxSourceBytes: DefaultMaxSourceBytes,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "detector")
	return d
}

// Detect returns the violations of rules found in source.
//
// Description:
//
//	Pattern violations come first, grouped by rule in rule order and then
//	by line. Structural violations follow in source order. Nothing is
//	deduplicated. Source that does not parse as Python still gets the
//	pattern pass; the structural pass is skipped without an error.
//
// Inputs:
//
//	ctx - Cancellation. Checked between rules and at every loop node.
//	source - Python source text.
//	rules - Active rules, usually from Registry.Resolve.
//
// Outputs:
//
//	[]Violation - Never nil on success.
//	error - ErrInvalidSource, ErrSourceTooLarge, or the context error.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (d *Detector) Detect(ctx context.Context, source string, rules []policy.Rule) ([]Violation, error) {
	start := time.Now()
	ctx, span := startDetectSpan(ctx, len(source), len(rules))
	defer span.End()

	violations, patternCount, skipped, err := d.detect(ctx, source, rules)
	recordDetectMetrics(ctx, time.Since(start), patternCount, len(violations)-patternCount, skipped, err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	setDetectSpanResult(span, patternCount, len(violations)-patternCount, skipped)
	return violations, nil
}

func (d *Detector) detect(ctx context.Context, source string, rules []policy.Rule) ([]Violation, int, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, false, err
	}
	if len(source) > d.maxSourceBytes {
		return nil, 0, false, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrSourceTooLarge, len(source), d.maxSourceBytes)
	}
	if !utf8.ValidString(source) {
		return nil, 0, false, ErrInvalidSource
	}

	violations, err := patternPass(ctx, strings.Split(source, "\n"), rules)
	if err != nil {
		return nil, 0, false, err
	}
	patternCount := len(violations)

	depth, handler, ok := structuralRules(rules)
	if !ok {
		return violations, patternCount, false, nil
	}

	res, err := structuralPass(ctx, []byte(source), depth, handler)
	if err != nil {
		return nil, 0, false, err
	}
	if res.skipped {
		d.logger.Debug(describeSkip(len(source)))
		trace.SpanFromContext(ctx).AddEvent("structural_pass_skipped")
		return violations, patternCount, true, nil
	}
	return append(violations, res.violations...), patternCount, false, nil
}
