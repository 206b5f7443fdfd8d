// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diffscope

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// DefaultContext is the number of unchanged lines around each hunk.
const DefaultContext = 3

var (
	// ErrInvalidPatch is returned when a patch cannot be parsed as a
	// single-file unified diff.
	ErrInvalidPatch = errors.New("invalid unified diff")

	// ErrPatchMismatch is returned when a hunk does not match the original.
	ErrPatchMismatch = errors.New("patch does not apply to original")
)

// UnifiedDiff renders the edit script from original to modified as a
// single-file unified diff. Identical inputs yield "".
//
// Line terminators are not compared: "a\n" and "a" render no difference.
func UnifiedDiff(original, modified, name string) (string, error) {
	if name == "" {
		name = "source.py"
	}
	a := textLines(original)
	b := textLines(modified)

	groups := difflib.NewMatcher(a, b).GetGroupedOpCodes(DefaultContext)
	if len(groups) == 0 {
		return "", nil
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + name,
		NewName:  "b/" + name,
		Hunks:    make([]*diff.Hunk, 0, len(groups)),
	}
	for _, group := range groups {
		fd.Hunks = append(fd.Hunks, buildHunk(a, b, group))
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("render diff: %w", err)
	}
	return string(out), nil
}

func buildHunk(a, b []string, group []difflib.OpCode) *diff.Hunk {
	first, last := group[0], group[len(group)-1]
	i1, i2, j1, j2 := first.I1, last.I2, first.J1, last.J2

	var body strings.Builder
	for _, op := range group {
		switch op.Tag {
		case 'e':
			writeLines(&body, ' ', a[op.I1:op.I2])
		case 'd':
			writeLines(&body, '-', a[op.I1:op.I2])
		case 'i':
			writeLines(&body, '+', b[op.J1:op.J2])
		case 'r':
			writeLines(&body, '-', a[op.I1:op.I2])
			writeLines(&body, '+', b[op.J1:op.J2])
		}
	}

	return &diff.Hunk{
		OrigStartLine: rangeStart(i1, i2),
		OrigLines:     int32(i2 - i1),
		NewStartLine:  rangeStart(j1, j2),
		NewLines:      int32(j2 - j1),
		Body:          []byte(body.String()),
	}
}

// rangeStart is the 1-based hunk start. An empty range names the line
// before it.
func rangeStart(lo, hi int) int32 {
	if hi == lo {
		return int32(lo)
	}
	return int32(lo + 1)
}

func writeLines(w *strings.Builder, prefix byte, lines []string) {
	for _, l := range lines {
		w.WriteByte(prefix)
		w.WriteString(l)
		w.WriteByte('\n')
	}
}

// ApplyPatch applies a single-file unified diff to original.
//
// Context and removed lines must match the original exactly. The result
// keeps the original's trailing newline. A patch made only of hunks, with
// no file headers, is accepted.
func ApplyPatch(original, patch string) (string, error) {
	hunks, err := parseHunks(patch)
	if err != nil {
		return "", err
	}

	orig := textLines(original)
	out := make([]string, 0, len(orig))
	idx := 0
	for n, h := range hunks {
		start := int(h.OrigStartLine) - 1
		if h.OrigLines == 0 {
			start = int(h.OrigStartLine)
		}
		if start < idx || start > len(orig) {
			return "", fmt.Errorf("%w: hunk %d starts at line %d", ErrPatchMismatch, n+1, h.OrigStartLine)
		}
		out = append(out, orig[idx:start]...)
		idx = start

		for _, line := range hunkLines(h.Body) {
			if line == "" {
				// Some tools strip the space from empty context lines.
				line = " "
			}
			text := line[1:]
			switch line[0] {
			case '+':
				out = append(out, text)
			case '-', ' ':
				if idx >= len(orig) || orig[idx] != text {
					return "", fmt.Errorf("%w: hunk %d line %d", ErrPatchMismatch, n+1, idx+1)
				}
				if line[0] == ' ' {
					out = append(out, text)
				}
				idx++
			case '\\':
				// "\ No newline at end of file"
			default:
				return "", fmt.Errorf("%w: unexpected hunk line %q", ErrInvalidPatch, line)
			}
		}
	}
	out = append(out, orig[idx:]...)

	result := strings.Join(out, "\n")
	if len(out) > 0 && (strings.HasSuffix(original, "\n") || original == "") {
		result += "\n"
	}
	return result, nil
}

// parseHunks reads the hunks of a single-file diff, with or without file
// headers.
func parseHunks(patch string) ([]*diff.Hunk, error) {
	if strings.TrimSpace(patch) == "" {
		return nil, fmt.Errorf("%w: empty patch", ErrInvalidPatch)
	}

	var hunks []*diff.Hunk
	if strings.HasPrefix(patch, "@@") {
		parsed, err := diff.ParseHunks([]byte(patch))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		hunks = parsed
	} else {
		files, err := diff.ParseMultiFileDiff([]byte(patch))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		if len(files) != 1 {
			return nil, fmt.Errorf("%w: expected one file, got %d", ErrInvalidPatch, len(files))
		}
		hunks = files[0].Hunks
	}
	if len(hunks) == 0 {
		return nil, fmt.Errorf("%w: no hunks", ErrInvalidPatch)
	}
	return hunks, nil
}

// hunkLines splits a hunk body into its lines.
func hunkLines(body []byte) []string {
	s := strings.TrimSuffix(string(body), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// textLines splits on "\n" without producing a final empty line.
func textLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}
