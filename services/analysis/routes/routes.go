// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the analysis endpoints onto a gin engine.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/services/analysis"
	"github.com/rony31416/codeguard-test/services/analysis/handlers"
	"github.com/rony31416/codeguard-test/services/analysis/middleware"
)

// Options carries the route-level knobs.
type Options struct {
	RateLimitPerMinute int
	RateLimitBurst     int

	// LLMAlive probes the reasoning chain for the readiness endpoint.
	// Nil when no reasoning client is configured.
	LLMAlive func() bool
}

// SetupRoutes registers all endpoints.
func SetupRoutes(router *gin.Engine, svc *analysis.Service, logger *logging.Logger, opts Options) {
	router.Use(middleware.RequestID())

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		svc.Metrics().Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/health", handlers.Health())
		api.GET("/ready", handlers.Ready(svc, opts.LLMAlive))
		api.GET("/patterns", handlers.ListPatterns())
		api.GET("/analysis/:id", handlers.GetAnalysis(svc))

		limiter := middleware.NewRateLimiter(opts.RateLimitPerMinute, opts.RateLimitBurst)
		api.POST("/analyze", limiter.Middleware(), handlers.Analyze(svc, logger))
	}
}
