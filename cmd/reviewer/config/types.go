// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the reviewer configuration.
//
// Values come from DefaultConfig, then an optional YAML file, then REVIEW_*
// environment variables. Command-line flags are applied last by the
// caller.
package config

import (
	"time"

	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
	"github.com/AleutianAI/PolicyReview/services/review/telemetry"
)

// Config is the reviewer configuration file.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Rules     RulesConfig      `yaml:"rules"`
	Detector  DetectorConfig   `yaml:"detector"`
	Feedback  FeedbackConfig   `yaml:"feedback"`
	Logging   LoggingConfig    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

type ServerConfig struct {
	Port              int           `yaml:"port" validate:"gte=1,lte=65535"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`

	// RateLimit is requests per second across all clients; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`
	RateBurst int     `yaml:"rate_burst" validate:"gte=0"`

	AccessLog bool `yaml:"access_log"`
	Metrics   bool `yaml:"metrics"`
}

type RulesConfig struct {
	// Path of the rule file. Empty uses the embedded default rules.
	Path string `yaml:"path"`

	// Watch reloads the file as soon as it changes instead of on the next
	// request.
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

type DetectorConfig struct {
	MaxSourceBytes int `yaml:"max_source_bytes" validate:"gte=1"`
}

type FeedbackConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir holds the feedback database. Empty keeps feedback in memory.
	Dir        string        `yaml:"dir"`
	GCInterval time.Duration `yaml:"gc_interval" validate:"gte=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RateLimit:         50,
			RateBurst:         100,
			Metrics:           true,
		},
		Rules: RulesConfig{
			Watch:    true,
			Debounce: policy.DefaultDebounce,
		},
		Detector: DetectorConfig{
			MaxSourceBytes: detect.DefaultMaxSourceBytes,
		},
		Feedback: FeedbackConfig{
			Enabled:    true,
			GCInterval: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}
