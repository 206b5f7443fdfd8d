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
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ViolationID returns the stable identity of a violation: the hex sha256 of
// "<ruleID>:<line>:<message>".
func ViolationID(ruleID string, line int, message string) string {
	h := sha256.New()
	h.Write([]byte(ruleID))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.Itoa(line)))
	h.Write([]byte{':'})
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
