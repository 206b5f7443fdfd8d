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
	"strings"

	"github.com/AleutianAI/PolicyReview/services/review/policy"
)

// patternPass matches every pattern rule against every line. Rules are the
// outer loop so violations group by rule, then by line.
//
// Lines whose trimmed text starts with '#' are skipped. A trailing comment
// after code is still scanned.
func patternPass(ctx context.Context, lines []string, rules []policy.Rule) ([]Violation, error) {
	out := make([]Violation, 0)
	for _, rule := range rules {
		if rule.Kind != policy.KindPattern {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		message := rule.Description + " detected"
		for i, line := range lines {
			if !rule.Match(line) {
				continue
			}
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}
			out = append(out, newViolation(rule, i+1, message))
		}
	}
	return out, nil
}
