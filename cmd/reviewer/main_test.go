// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/PolicyReview/services/review"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	for _, key := range []string{"REVIEW_RULES_PATH", "REVIEW_PORT", "REVIEW_FEEDBACK_DIR", "REVIEW_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0644))
	return p
}

func TestScan_Text(t *testing.T) {
	src := writeFile(t, t.TempDir(), "app.py", "result = eval(data)\nprint(result)\n")

	out, _, err := runCLI(t, "scan", src, "--policies", "no_eval,enforce_logging")
	require.NoError(t, err)
	assert.Contains(t, out, "Policy review: app.py")
	assert.Contains(t, out, "75")
	assert.Contains(t, out, "MEDIUM_RISK")
	assert.Contains(t, out, "Use of eval detected [no_eval]")
}

func TestScan_JSONAllRules(t *testing.T) {
	src := writeFile(t, t.TempDir(), "app.py", "x = 1\n")

	out, _, err := runCLI(t, "scan", src, "--json")
	require.NoError(t, err)
	var resp review.ReviewResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 100, resp.RiskScore)
	assert.Empty(t, resp.Violations)
}

func TestScan_FailBelow(t *testing.T) {
	src := writeFile(t, t.TempDir(), "app.py", "eval(a)\neval(b)\neval(c)\n")

	_, _, err := runCLI(t, "scan", src, "-p", "no_eval", "--fail-below", "50")
	assert.ErrorIs(t, err, errThresholdExceeded)
}

func TestScan_MissingFile(t *testing.T) {
	_, _, err := runCLI(t, "scan", filepath.Join(t.TempDir(), "absent.py"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiff_Files(t *testing.T) {
	dir := t.TempDir()
	orig := writeFile(t, dir, "old.py", "x = 1\n")
	mod := writeFile(t, dir, "new.py", "x = 1\neval(x)\n")

	out, _, err := runCLI(t, "diff", orig, mod, "-p", "no_eval", "--json")
	require.NoError(t, err)
	var resp review.DiffReviewResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 80, resp.RiskScore)
	assert.Equal(t, -20, resp.RiskDelta)
	assert.Equal(t, 1, resp.DiffMetadata.LinesAdded)
	assert.NotEmpty(t, resp.Patch)

	out, _, err = runCLI(t, "diff", orig, mod, "-p", "no_eval")
	require.NoError(t, err)
	assert.Contains(t, out, "Risk delta:")
	assert.Contains(t, out, "-20")
}

func TestDiff_Patch(t *testing.T) {
	dir := t.TempDir()
	orig := writeFile(t, dir, "old.py", "x = 1\n")
	patch := writeFile(t, dir, "change.diff", "@@ -1,1 +1,2 @@\n x = 1\n+eval(x)\n")

	out, _, err := runCLI(t, "diff", orig, "--patch", patch, "-p", "no_eval", "--json")
	require.NoError(t, err)
	var resp review.DiffReviewResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, 2, resp.Violations[0].Line)
}

func TestDiff_ArgErrors(t *testing.T) {
	dir := t.TempDir()
	orig := writeFile(t, dir, "old.py", "x = 1\n")

	_, _, err := runCLI(t, "diff", orig)
	assert.Error(t, err)
	_, _, err = runCLI(t, "diff", orig, orig, "--patch", orig)
	assert.Error(t, err)
}

func TestRules_ListAndVerifyEmbedded(t *testing.T) {
	out, _, err := runCLI(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "no_secrets")
	assert.Contains(t, out, "nested_depth > 3")

	out, _, err = runCLI(t, "rules", "verify", "--json")
	require.NoError(t, err)
	var res verifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Valid)
	assert.Contains(t, res.Fingerprint, "sha256:")
	assert.Contains(t, res.RuleIDs, "error_handling")
}

func TestRules_VerifyRejectsDroppedEntries(t *testing.T) {
	rules := writeFile(t, t.TempDir(), "rules.yaml", `rules:
  - id: no_eval
    kind: pattern
    pattern: '\beval\('
    severity: HIGH
    description: Use of eval
  - id: broken
    kind: pattern
    pattern: '('
    severity: HIGH
    description: Bad regex
`)

	out, _, err := runCLI(t, "rules", "verify", "--rules", rules)
	assert.ErrorIs(t, err, errRulesInvalid)
	assert.Contains(t, out, "Rules failed verification")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.yaml")

	out, _, err := runCLI(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, _, err = runCLI(t, "config", "init", path)
	assert.ErrorIs(t, err, os.ErrExist)

	src := writeFile(t, t.TempDir(), "app.py", "x = 1\n")
	_, _, err = runCLI(t, "scan", src, "--config", path)
	assert.NoError(t, err)
}
