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

import "errors"

// Sentinel errors for the review service.
var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrMissingUser indicates an operation that needs a user id got none.
	ErrMissingUser = errors.New("user id required")

	// ErrFeedbackDisabled indicates no feedback store is configured.
	ErrFeedbackDisabled = errors.New("feedback store not configured")
)
