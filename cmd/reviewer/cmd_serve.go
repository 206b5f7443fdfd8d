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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/PolicyReview/cmd/reviewer/config"
	"github.com/AleutianAI/PolicyReview/services/review"
	"github.com/AleutianAI/PolicyReview/services/review/feedback"
	"github.com/AleutianAI/PolicyReview/services/review/observability"
	"github.com/AleutianAI/PolicyReview/services/review/policy"
	badgerstore "github.com/AleutianAI/PolicyReview/services/review/storage/badger"
	"github.com/AleutianAI/PolicyReview/services/review/telemetry"
)

type serveOptions struct {
	port    int
	debug   bool
	noWatch bool
}

func newServeCmd(g *globalOptions) *cobra.Command {
	o := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the review HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if o.port != 0 {
				cfg.Server.Port = o.port
			}
			if o.noWatch {
				cfg.Rules.Watch = false
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg, o.debug)
		},
	}
	cmd.Flags().IntVar(&o.port, "port", 0, "port to listen on (overrides config and REVIEW_PORT)")
	cmd.Flags().BoolVar(&o.debug, "debug", false, "enable gin debug mode and access logs")
	cmd.Flags().BoolVar(&o.noWatch, "no-watch", false, "do not watch the rule file for changes")
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg config.Config, debug bool) error {
	lg, err := newLogger(cfg.Logging, cfg.Telemetry.ServiceName, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer lg.Close()
	logger := lg.Slog()
	slog.SetDefault(logger)

	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	metrics := observability.Default()
	reg := newRegistry(cfg.Rules, logger, policy.WithReloadHook(metrics.RecordSnapshot))

	if cfg.Rules.Watch && cfg.Rules.Path != "" {
		watcher, err := policy.NewWatcher(reg, cfg.Rules.Path, cfg.Rules.Debounce, logger)
		if err != nil {
			return fmt.Errorf("watch rules: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			// Staleness checks on each request still pick up changes.
			logger.Warn("Rule watcher unavailable", "path", cfg.Rules.Path, "error", err)
		}
		defer watcher.Stop()
	}

	opts := []review.ServiceOption{
		review.WithDetector(newDetector(cfg.Detector, logger)),
		review.WithMetrics(metrics),
		review.WithServiceLogger(logger),
	}
	if cfg.Feedback.Enabled {
		db, err := openFeedbackDB(cfg.Feedback, logger)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, review.WithFeedback(feedback.NewStore(db, logger)))
	}
	svc := review.NewService(reg, opts...)

	router := review.NewRouter(review.NewHandlers(svc, metrics), review.RouterConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		RateLimit:   cfg.Server.RateLimit,
		RateBurst:   cfg.Server.RateBurst,
		Metrics:     cfg.Server.Metrics,
		AccessLog:   cfg.Server.AccessLog || debug,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting policy review server",
			"address", srv.Addr,
			"rules_source", reg.Source(),
			"rules_active", reg.Snapshot().Len(),
			"feedback", cfg.Feedback.Enabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down policy review server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return errors.Join(srv.Shutdown(shutdownCtx), shutdownTelemetry(shutdownCtx))
}

// openFeedbackDB opens the feedback database, in memory when no directory
// is configured.
func openFeedbackDB(cfg config.FeedbackConfig, logger *slog.Logger) (*badgerstore.DB, error) {
	var dbCfg badgerstore.Config
	if cfg.Dir == "" {
		logger.Warn("No feedback directory configured, feedback is kept in memory")
		dbCfg = badgerstore.InMemoryConfig()
	} else {
		dbCfg = badgerstore.DefaultConfig(cfg.Dir)
		dbCfg.GCInterval = cfg.GCInterval
	}
	dbCfg.Logger = logger.With("component", "badger")
	db, err := badgerstore.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open feedback store: %w", err)
	}
	return db, nil
}
