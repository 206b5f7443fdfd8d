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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/PolicyReview/cmd/reviewer/config"
)

// errRulesInvalid is returned by "rules verify" for a rule source that
// loads no rules or drops entries.
var errRulesInvalid = errors.New("rule source failed verification")

func newRulesCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the active rule set",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List active rules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runRules(cmd, g, false)
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Load the rule source and print its fingerprint",
			Long: `Load the configured rule source and report its sha256 fingerprint,
version and rule counts. Fails when no rule loads or any entry is dropped,
so it can gate a rules change in CI.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runRules(cmd, g, true)
			},
		},
	)
	return cmd
}

func runRules(cmd *cobra.Command, g *globalOptions, verify bool) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	lg, err := g.cliLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer lg.Close()

	snap := newRegistry(cfg.Rules, lg.Slog()).Snapshot()
	p := printerFor(cmd, g.jsonOutput)
	if !verify {
		return renderRules(p, snap)
	}
	if err := renderVerify(p, snap); err != nil {
		return err
	}
	if snap.Len() == 0 || snap.Dropped > 0 {
		return fmt.Errorf("%w: %d rules loaded, %d dropped", errRulesInvalid, snap.Len(), snap.Dropped)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage reviewer configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init <path>",
		Short: "Write the default configuration to <path>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default config to %s\n", args[0])
			return nil
		},
	})
	return cmd
}
