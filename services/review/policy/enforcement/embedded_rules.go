// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package enforcement bakes the default review rule set into the binary with
the Go embed package. The registry falls back to these rules when no rules
path is configured, so a fresh install reviews code without extra files.
*/
package enforcement

import (
	_ "embed"
)

// DefaultRules holds the raw bytes of default_rules.yaml.
//
// Usage:
//
//	src := policy.NewEmbeddedSource("embedded:default_rules.yaml", enforcement.DefaultRules)
//
//go:embed default_rules.yaml
var DefaultRules []byte

// Name identifies the embedded document in snapshots and logs.
const Name = "embedded:default_rules.yaml"
