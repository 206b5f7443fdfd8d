// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyDocument is returned by Parse for a document with no content.
	ErrEmptyDocument = errors.New("rule document is empty")

	// ErrUnsupportedLayout is returned when the document root is neither a
	// sequence of rules nor a mapping with a rules key.
	ErrUnsupportedLayout = errors.New("rule document must be a list or a mapping with a rules key")
)

// validate is the shared validator instance. validator caches struct
// metadata, so one instance serves every load.
var validate = validator.New()

// ParseResult is the outcome of decoding one rule document.
type ParseResult struct {
	Rules   []Rule
	Dropped int
	Version string
}

// Parse decodes, normalizes, validates and compiles a rule document.
//
// Description:
//
//	The document may be YAML or JSON (the YAML decoder accepts both). Two
//	layouts are recognised: a top-level list of rules, or a mapping whose
//	"rules" key holds that list. Each entry is decoded on its own so that a
//	malformed entry is dropped without discarding its neighbours.
//
// Inputs:
//
//	raw - The document bytes.
//	logger - Receives one warning per dropped entry. Nil uses slog.Default().
//
// Outputs:
//
//	ParseResult - Valid rules in document order and the count of dropped entries.
//	error - Non-nil only when the document as a whole cannot be decoded.
//
// Thread Safety:
//
//	Safe for concurrent use.
func Parse(raw []byte, logger *slog.Logger) (ParseResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ParseResult{}, fmt.Errorf("decode rule document: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return ParseResult{}, ErrEmptyDocument
	}

	items, version, err := ruleItems(doc.Content[0])
	if err != nil {
		return ParseResult{}, err
	}

	res := ParseResult{Rules: make([]Rule, 0, len(items)), Version: version}
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		var entry ruleEntry
		if err := item.Decode(&entry); err != nil {
			logger.Warn("dropping undecodable rule", "index", i, "line", item.Line, "error", err)
			res.Dropped++
			continue
		}
		rule, err := buildRule(entry)
		if err != nil {
			logger.Warn("dropping invalid rule", "index", i, "id", entry.ID, "error", err)
			res.Dropped++
			continue
		}
		if _, dup := seen[rule.ID]; dup {
			logger.Warn("dropping duplicate rule", "index", i, "id", rule.ID)
			res.Dropped++
			continue
		}
		seen[rule.ID] = struct{}{}
		res.Rules = append(res.Rules, rule)
	}
	return res, nil
}

// ruleItems returns the sequence items holding rule entries.
func ruleItems(root *yaml.Node) ([]*yaml.Node, string, error) {
	switch root.Kind {
	case yaml.SequenceNode:
		return root.Content, "", nil
	case yaml.MappingNode:
		var (
			rules   *yaml.Node
			version string
		)
		for i := 0; i+1 < len(root.Content); i += 2 {
			switch root.Content[i].Value {
			case "rules":
				rules = root.Content[i+1]
			case "version":
				version = root.Content[i+1].Value
			}
		}
		if rules == nil {
			return nil, version, nil
		}
		if rules.Kind != yaml.SequenceNode {
			return nil, "", ErrUnsupportedLayout
		}
		return rules.Content, version, nil
	default:
		return nil, "", ErrUnsupportedLayout
	}
}

// buildRule normalizes a decoded entry into a validated Rule.
func buildRule(entry ruleEntry) (Rule, error) {
	rule := Rule{
		ID:                strings.TrimSpace(entry.ID),
		Kind:              normalizeKind(entry),
		Pattern:           entry.Pattern,
		Severity:          Severity(strings.ToUpper(strings.TrimSpace(entry.Severity))),
		Description:       strings.TrimSpace(entry.Description),
		RiskExplanation:   entry.RiskExplanation,
		ExploitScenario:   entry.ExploitScenario,
		FixRecommendation: entry.FixRecommendation,
		SecureCodeExample: entry.SecureCodeExample,
	}

	if rule.Kind == KindStructural {
		rule.Check = normalizeCheck(entry.Check, rule.ID)
		if rule.Check == "" {
			return Rule{}, fmt.Errorf("structural rule %q has no check", rule.ID)
		}
		rule.MaxDepth = DefaultMaxDepth
		if entry.MaxDepth != nil {
			rule.MaxDepth = *entry.MaxDepth
		}
		rule.Pattern = ""
	}

	if err := validate.Struct(rule); err != nil {
		return Rule{}, fmt.Errorf("validate: %w", err)
	}

	if rule.Kind == KindPattern {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("compile pattern: %w", err)
		}
		rule.re = re
	}
	return rule, nil
}

// normalizeKind maps both the kind field and the legacy type field
// ("regex", "ast") onto Kind.
func normalizeKind(entry ruleEntry) Kind {
	k := strings.ToLower(strings.TrimSpace(entry.Kind))
	if k == "" {
		k = strings.ToLower(strings.TrimSpace(entry.Type))
	}
	switch k {
	case "pattern", "regex":
		return KindPattern
	case "structural", "ast":
		return KindStructural
	default:
		return Kind(k)
	}
}

func normalizeCheck(check, id string) Check {
	switch strings.ToLower(strings.TrimSpace(check)) {
	case "nested_depth", "nested_loops":
		return CheckNestedDepth
	case "empty_handler", "empty_except":
		return CheckEmptyHandler
	case "":
		// Legacy files identified the check by rule id alone.
		switch id {
		case "nested_loops":
			return CheckNestedDepth
		case "error_handling":
			return CheckEmptyHandler
		}
		return ""
	default:
		return Check(check)
	}
}

// Fingerprint returns "sha256:<hex>" of a raw rule document.
func Fingerprint(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}
