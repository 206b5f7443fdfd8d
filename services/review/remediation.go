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

import "context"

// remedy is one knowledge base entry.
type remedy struct {
	suggestion string
	exampleFix string
	reason     string
}

// knowledgeBase holds curated advice for the bundled rules. Rules not
// listed here fall back to their own fix_recommendation.
var knowledgeBase = map[string]remedy{
	"no_secrets": {
		suggestion: "Move secrets to environment variables or a secret management service.",
		exampleFix: "import os\napi_key = os.getenv('API_KEY')",
		reason:     "Hardcoding secrets poses a severe security risk. If the code is committed to version control, the secret is compromised.",
	},
	"nested_loops": {
		suggestion: "Refactor nested loops into separate functions or use efficient data structures (e.g., hash maps).",
		exampleFix: "# Use dictionary for O(1) lookups\nlookup = {x.id: x for x in items}\nfor y in other_items: ...",
		reason:     "Deeply nested loops increase time complexity (often O(N^3) or worse), causing performance bottlenecks.",
	},
	"blocking_calls": {
		suggestion: "Offload blocking calls to a background thread or use asynchronous alternatives.",
		exampleFix: "await asyncio.sleep(5)  # Instead of time.sleep(5)",
		reason:     "Blocking calls in the main thread (especially in async contexts) freeze the application, making it unresponsive.",
	},
	"enforce_logging": {
		suggestion: "Integrate the `logging` module to track application state and errors.",
		exampleFix: "import logging\nlogging.info('Operation started')",
		reason:     "Without logs, debugging production issues is nearly impossible. `print` statements are insufficient for enterprise apps.",
	},
	"error_handling": {
		suggestion: "Catch specific exceptions and log the error; never use bare `except:` pass.",
		exampleFix: "except ValueError as e:\n    logging.error(f'Invalid input: {e}')",
		reason:     "Empty except blocks silence legitimate errors, leading to unpredictable behavior and difficult debugging.",
	},
}

// Remediate returns one suggestion per distinct rule id, in first-seen
// order. Ids with neither a knowledge base entry nor a fix recommendation
// on the active rule are skipped.
func (s *Service) Remediate(ctx context.Context, req RemediationRequest) ([]Suggestion, error) {
	if err := validate.Struct(req); err != nil {
		return nil, wrapInvalid(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := s.registry.Snapshot()
	seen := make(map[string]struct{}, len(req.Violations))
	out := make([]Suggestion, 0, len(req.Violations))
	for _, item := range req.Violations {
		if _, dup := seen[item.RuleID]; dup {
			continue
		}
		seen[item.RuleID] = struct{}{}

		if kb, ok := knowledgeBase[item.RuleID]; ok {
			out = append(out, Suggestion{
				RuleID:     item.RuleID,
				Suggestion: kb.suggestion,
				ExampleFix: kb.exampleFix,
				Reason:     kb.reason,
			})
			continue
		}
		rule, ok := snap.Lookup(item.RuleID)
		if !ok || rule.FixRecommendation == "" {
			continue
		}
		out = append(out, Suggestion{
			RuleID:     rule.ID,
			Suggestion: rule.FixRecommendation,
			ExampleFix: rule.SecureCodeExample,
			Reason:     rule.RiskExplanation,
		})
	}
	return out, nil
}
