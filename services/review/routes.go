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

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/PolicyReview/services/review/observability"
	"github.com/AleutianAI/PolicyReview/services/review/telemetry"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	// ServiceName labels otelgin spans. Empty disables the middleware.
	ServiceName string

	// RateLimit is the sustained request rate per second. Zero disables
	// limiting.
	RateLimit float64

	// RateBurst is the limiter bucket size. Defaults to 1 when RateLimit
	// is set.
	RateBurst int

	// Metrics exposes GET /metrics when true.
	Metrics bool

	// AccessLog enables gin's request logger.
	AccessLog bool
}

// RegisterRoutes registers the review endpoints on rg.
//
// Endpoints:
//
//	POST /v1/review - Review a whole source
//	POST /v1/review/diff - Review the added lines of a change
//	POST /v1/review/patch - Review a unified diff against its original
//	POST /v1/review/remediation - Suggestions for reported rules
//	POST /v1/review/feedback - Record a verdict on a violation
//	GET  /v1/review/feedback/stats - Verdict counts
//	GET  /v1/review/rules - Active rule snapshot
//	GET  /v1/review/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	review := rg.Group("/review")
	{
		review.POST("", handlers.HandleReview)
		review.POST("/diff", handlers.HandleDiff)
		review.POST("/patch", handlers.HandlePatch)
		review.POST("/remediation", handlers.HandleRemediation)

		review.POST("/feedback", handlers.HandleFeedback)
		review.GET("/feedback/stats", handlers.HandleFeedbackStats)

		review.GET("/rules", handlers.HandleRules)
		review.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the gin engine serving the review API.
func NewRouter(handlers *Handlers, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.AccessLog {
		router.Use(gin.Logger())
	}
	if cfg.ServiceName != "" {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	if cfg.Metrics {
		router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	}

	v1 := router.Group("/v1")
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		v1.Use(RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst), handlers.metrics))
	}
	RegisterRoutes(v1, handlers)
	return router
}

// RateLimit rejects requests with 429 once limiter is exhausted.
func RateLimit(limiter *rate.Limiter, metrics *observability.ReviewMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			if metrics != nil {
				metrics.RecordRateLimited()
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
