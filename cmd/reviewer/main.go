// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command reviewer runs policy reviews of Python source.
//
// Usage:
//
//	reviewer serve                      # HTTP API on :8080
//	reviewer scan app.py                # review one file
//	reviewer diff old.py new.py         # review the added lines of a change
//	reviewer diff old.py --patch x.diff # same, from a unified diff
//	reviewer rules list|verify          # inspect the active rule set
//	reviewer config init review.yaml    # write the default configuration
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitError     = 1
	exitThreshold = 3
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		if errors.Is(err, errThresholdExceeded) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(exitThreshold)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}
