// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diffscope restricts review findings to the lines a change added.
package diffscope

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Alignment is the line-level outcome of comparing two versions.
type Alignment struct {
	// AddedLines are 1-based line numbers in the modified text, ascending.
	AddedLines []int `json:"added_lines"`

	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`

	// LinesModified equals LinesAdded. A changed line is a removal paired
	// with an addition and only the addition is counted.
	LinesModified int `json:"lines_modified"`
}

// Contains reports whether line was added in the modified text.
func (a Alignment) Contains(line int) bool {
	i := sort.SearchInts(a.AddedLines, line)
	return i < len(a.AddedLines) && a.AddedLines[i] == line
}

// Align computes the edit script between original and modified lines and
// records the modified-side line number of every added line.
//
// Unchanged and added lines advance a cursor over the modified text;
// removed lines do not. Each added line records the cursor after advancing.
func Align(original, modified string) Alignment {
	a := SplitLines(original)
	b := SplitLines(modified)

	out := Alignment{AddedLines: make([]int, 0)}
	cursor := 0
	for _, op := range difflib.NewMatcher(a, b).GetOpCodes() {
		switch op.Tag {
		case 'e':
			cursor += op.J2 - op.J1
		case 'd':
			out.LinesRemoved += op.I2 - op.I1
		case 'r', 'i':
			out.LinesRemoved += op.I2 - op.I1
			for j := op.J1; j < op.J2; j++ {
				cursor++
				out.AddedLines = append(out.AddedLines, cursor)
			}
		}
	}
	out.LinesAdded = len(out.AddedLines)
	out.LinesModified = out.LinesAdded
	return out
}

// SplitLines splits s at line boundaries without keeping them. The
// boundaries are \n, \r\n, \r, \v, \f, \x1c, \x1d, \x1e, \x85, U+2028 and
// U+2029. A trailing boundary does not produce an empty final line.
func SplitLines(s string) []string {
	lines := make([]string, 0, strings.Count(s, "\n")+1)
	start := 0
	for i, r := range s {
		if i < start {
			continue
		}
		switch r {
		case '\n', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, s[start:i])
			start = i + len(string(r))
		case '\r':
			lines = append(lines, s[start:i])
			start = i + 1
			if start < len(s) && s[start] == '\n' {
				start++
			}
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
