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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PolicyReview/cmd/reviewer/config"
	"github.com/AleutianAI/PolicyReview/pkg/logging"
	"github.com/AleutianAI/PolicyReview/pkg/ux"
	"github.com/AleutianAI/PolicyReview/services/review/detect"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
	"github.com/AleutianAI/PolicyReview/services/review/policy/enforcement"
)

// errThresholdExceeded is returned when a reviewed score is below
// --fail-below.
var errThresholdExceeded = errors.New("risk score below threshold")

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	rulesPath  string
	logLevel   string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "reviewer",
		Short:         "Policy-driven code review and risk scoring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.rulesPath, "rules", "", "rule file (overrides config and REVIEW_RULES_PATH)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of text")

	root.AddCommand(
		newServeCmd(opts),
		newScanCmd(opts),
		newDiffCmd(opts),
		newRulesCmd(opts),
		newConfigCmd(),
	)
	return root
}

// loadConfig loads the config file and applies flag overrides.
func (o *globalOptions) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.rulesPath != "" {
		cfg.Rules.Path = o.rulesPath
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	return cfg, nil
}

// cliLogger builds the logger for one-shot commands. Without --log-level
// only warnings and errors are shown.
func (o *globalOptions) cliLogger(cmd *cobra.Command, cfg config.Config) (*logging.Logger, error) {
	lc := cfg.Logging
	if o.logLevel == "" {
		lc.Level = "warn"
	}
	return newLogger(lc, "reviewer", cmd.ErrOrStderr())
}

// newLogger builds the process logger. CLI commands log to stderr so that
// stdout carries only results.
func newLogger(cfg config.LoggingConfig, service string, stderr io.Writer) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Dir,
		Service: service,
		JSON:    cfg.JSON,
		Output:  stderr,
	}), nil
}

// newRegistry opens the configured rule source, or the embedded defaults
// when no path is set.
func newRegistry(cfg config.RulesConfig, logger *slog.Logger, opts ...policy.Option) *policy.Registry {
	var source policy.ConfigSource
	if cfg.Path != "" {
		source = policy.NewFileSource(cfg.Path)
	} else {
		source = policy.NewEmbeddedSource(enforcement.Name, enforcement.DefaultRules)
	}
	return policy.NewRegistry(source, append([]policy.Option{policy.WithLogger(logger)}, opts...)...)
}

func newDetector(cfg config.DetectorConfig, logger *slog.Logger) *detect.Detector {
	return detect.New(detect.WithMaxSourceBytes(cfg.MaxSourceBytes), detect.WithLogger(logger))
}

// printerFor renders to the command's stdout.
func printerFor(cmd *cobra.Command, jsonOutput bool) *ux.Printer {
	out := cmd.OutOrStdout()
	f, _ := out.(*os.File)
	return ux.NewPrinter(out, ux.DetectMode(f, jsonOutput))
}

// policyIDs returns the requested rule ids, or every active rule id when
// none were given.
func policyIDs(requested []string, reg *policy.Registry) []string {
	if len(requested) > 0 {
		out := make([]string, 0, len(requested))
		for _, id := range requested {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
		return out
	}
	rules := reg.All()
	ids := make([]string, len(rules))
	for i, r := range rules {
		ids[i] = r.ID
	}
	return ids
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func checkThreshold(score, failBelow int) error {
	if failBelow > 0 && score < failBelow {
		return fmt.Errorf("%w: %d < %d", errThresholdExceeded, score, failBelow)
	}
	return nil
}
