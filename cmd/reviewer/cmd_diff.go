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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PolicyReview/services/review"
)

type diffOptions struct {
	policies  []string
	patchPath string
	failBelow int
}

func newDiffCmd(g *globalOptions) *cobra.Command {
	o := &diffOptions{}
	cmd := &cobra.Command{
		Use:   "diff <original> [modified]",
		Short: "Review only the lines a change adds",
		Long: `Review the lines added between two versions of a file.

Either pass both versions, or the original and --patch with a unified diff
against it. The reported score covers added lines only; the risk delta
compares both versions in full.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, g, o, args)
		},
	}
	cmd.Flags().StringSliceVarP(&o.policies, "policies", "p", nil, "rule ids to apply (default: all active rules)")
	cmd.Flags().StringVar(&o.patchPath, "patch", "", "unified diff to apply to <original>")
	cmd.Flags().IntVar(&o.failBelow, "fail-below", 0, "exit with status 3 when the scoped risk score is below this value")
	return cmd
}

func runDiff(cmd *cobra.Command, g *globalOptions, o *diffOptions, args []string) error {
	if o.patchPath == "" && len(args) != 2 {
		return errors.New("diff needs <original> <modified> or <original> --patch <file>")
	}
	if o.patchPath != "" && len(args) != 1 {
		return errors.New("--patch takes exactly one <original> argument")
	}

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

	original, err := readSource(args[0])
	if err != nil {
		return err
	}
	reg := newRegistry(cfg.Rules, logger)
	svc := review.NewService(reg,
		review.WithDetector(newDetector(cfg.Detector, logger)),
		review.WithServiceLogger(logger),
	)
	policies := policyIDs(o.policies, reg)
	name := filepath.Base(args[0])

	var resp *review.DiffReviewResponse
	if o.patchPath != "" {
		patch, err := readSource(o.patchPath)
		if err != nil {
			return err
		}
		resp, err = svc.ReviewPatch(cmd.Context(), "", review.PatchReviewRequest{
			OriginalCode: &original,
			Patch:        &patch,
			Policies:     policies,
			FileName:     name,
		})
		if err != nil {
			return err
		}
	} else {
		modified, err := readSource(args[1])
		if err != nil {
			return err
		}
		resp, err = svc.ReviewDiff(cmd.Context(), "", review.DiffReviewRequest{
			OriginalCode: &original,
			ModifiedCode: &modified,
			Policies:     policies,
			FileName:     name,
		})
		if err != nil {
			return err
		}
	}

	if err := renderDiff(printerFor(cmd, g.jsonOutput), resp); err != nil {
		return err
	}
	return checkThreshold(resp.RiskScore, o.failBelow)
}
