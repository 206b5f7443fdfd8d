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
	"regexp"
	"time"
)

// Kind selects how a rule is evaluated.
type Kind string

const (
	// KindPattern rules are regular expressions matched line by line.
	KindPattern Kind = "pattern"

	// KindStructural rules are evaluated against the syntax tree.
	KindStructural Kind = "structural"
)

// Check names a structural check.
type Check string

const (
	// CheckNestedDepth flags loops nested deeper than MaxDepth.
	CheckNestedDepth Check = "nested_depth"

	// CheckEmptyHandler flags exception handlers whose body is a lone pass.
	CheckEmptyHandler Check = "empty_handler"
)

// Severity is the weight class of a rule.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
	SeverityLow    Severity = "LOW"
)

// DefaultMaxDepth is the loop nesting threshold used when a nested_depth
// rule does not set max_depth.
const DefaultMaxDepth = 3

// Rule is one validated detection criterion.
//
// Rules are built by Parse and never modified afterwards. The compiled
// pattern is shared read-only between goroutines.
type Rule struct {
	ID                string   `json:"id" validate:"required,max=128"`
	Kind              Kind     `json:"kind" validate:"required,oneof=pattern structural"`
	Pattern           string   `json:"pattern,omitempty" validate:"required_if=Kind pattern"`
	Check             Check    `json:"check,omitempty" validate:"omitempty,oneof=nested_depth empty_handler"`
	MaxDepth          int      `json:"max_depth,omitempty" validate:"gte=0,lte=64"`
	Severity          Severity `json:"severity" validate:"required,oneof=HIGH MEDIUM LOW"`
	Description       string   `json:"description" validate:"required_if=Kind pattern,max=512"`
	RiskExplanation   string   `json:"risk_explanation,omitempty"`
	ExploitScenario   string   `json:"exploit_scenario,omitempty"`
	FixRecommendation string   `json:"fix_recommendation,omitempty"`
	SecureCodeExample string   `json:"secure_code_example,omitempty"`

	re *regexp.Regexp
}

// Match reports whether the rule's pattern occurs anywhere in line.
// Structural rules never match.
func (r Rule) Match(line string) bool {
	if r.re == nil {
		return false
	}
	return r.re.MatchString(line)
}

// IsStructural reports whether the rule runs the given structural check.
func (r Rule) IsStructural(check Check) bool {
	return r.Kind == KindStructural && r.Check == check
}

// ruleEntry is the on-disk shape of a rule before normalization.
//
// Both the current vocabulary (kind/check) and the legacy one used by
// older rules.json files (type: regex, check: empty_except) are accepted.
type ruleEntry struct {
	ID                string `yaml:"id"`
	Kind              string `yaml:"kind"`
	Type              string `yaml:"type"`
	Pattern           string `yaml:"pattern"`
	Check             string `yaml:"check"`
	MaxDepth          *int   `yaml:"max_depth"`
	Severity          string `yaml:"severity"`
	Description       string `yaml:"description"`
	RiskExplanation   string `yaml:"risk_explanation"`
	ExploitScenario   string `yaml:"exploit_scenario"`
	FixRecommendation string `yaml:"fix_recommendation"`
	SecureCodeExample string `yaml:"secure_code_example"`
}

// Snapshot is an immutable, versioned set of active rules.
//
// A Snapshot is published whole by the Registry and replaced, never
// mutated, on reload. Callers may hold on to one for the duration of a
// request to get a consistent view.
type Snapshot struct {
	// Rules in document order.
	Rules []Rule `json:"rules"`

	// Version increases by one for every load performed by a Registry.
	Version uint64 `json:"version"`

	// Source names the configuration the rules came from.
	Source string `json:"source"`

	// ModTime is the change indicator recorded when the source was read.
	ModTime time.Time `json:"mod_time"`

	// Fingerprint is the sha256 of the raw rule document.
	Fingerprint string `json:"fingerprint,omitempty"`

	// LoadedAt is when the snapshot was built.
	LoadedAt time.Time `json:"loaded_at"`

	// Dropped counts entries rejected during validation.
	Dropped int `json:"dropped"`

	index map[string]int
}

// newSnapshot builds a snapshot and its id index.
func newSnapshot(rules []Rule) *Snapshot {
	s := &Snapshot{
		Rules:    rules,
		LoadedAt: time.Now(),
		index:    make(map[string]int, len(rules)),
	}
	for i, r := range rules {
		s.index[r.ID] = i
	}
	return s
}

// Len returns the number of rules in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Rules)
}

// Lookup returns the rule with the given id.
func (s *Snapshot) Lookup(id string) (Rule, bool) {
	if s == nil {
		return Rule{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Rule{}, false
	}
	return s.Rules[i], true
}

// Select returns the rules whose id is in ids, in snapshot order.
// Unknown ids are ignored.
func (s *Snapshot) Select(ids []string) []Rule {
	if s == nil || len(ids) == 0 {
		return []Rule{}
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	out := make([]Rule, 0, len(wanted))
	for _, r := range s.Rules {
		if _, ok := wanted[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}
