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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PolicyReview/services/review"
)

type scanOptions struct {
	policies  []string
	failBelow int
}

func newScanCmd(g *globalOptions) *cobra.Command {
	o := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Review a whole source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, g, o, args[0])
		},
	}
	cmd.Flags().StringSliceVarP(&o.policies, "policies", "p", nil, "rule ids to apply (default: all active rules)")
	cmd.Flags().IntVar(&o.failBelow, "fail-below", 0, "exit with status 3 when the risk score is below this value")
	return cmd
}

func runScan(cmd *cobra.Command, g *globalOptions, o *scanOptions, path string) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	lg, err := g.cliLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer lg.Close()
	logger := lg.Slog()

	code, err := readSource(path)
	if err != nil {
		return err
	}
	reg := newRegistry(cfg.Rules, logger)
	svc := review.NewService(reg,
		review.WithDetector(newDetector(cfg.Detector, logger)),
		review.WithServiceLogger(logger),
	)

	resp, err := svc.Review(cmd.Context(), "", review.ReviewRequest{
		Code:     &code,
		Policies: policyIDs(o.policies, reg),
		FileName: filepath.Base(path),
	})
	if err != nil {
		return err
	}
	if err := renderReview(printerFor(cmd, g.jsonOutput), resp); err != nil {
		return err
	}
	return checkThreshold(resp.RiskScore, o.failBelow)
}
