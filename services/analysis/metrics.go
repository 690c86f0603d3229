// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors on a private
// registry so tests can construct services independently.
type Metrics struct {
	Registry *prometheus.Registry

	AnalysesStarted   prometheus.Counter
	AnalysesCompleted prometheus.Counter
	AnalysesFailed    prometheus.Counter
	StageDuration     *prometheus.HistogramVec
	SandboxTier       *prometheus.CounterVec
	LLMProvider       *prometheus.CounterVec
}

// NewMetrics builds and registers the collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		AnalysesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeguard_analyses_started_total",
			Help: "Analysis runs accepted.",
		}),
		AnalysesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeguard_analyses_completed_total",
			Help: "Analysis runs whose background stage finished.",
		}),
		AnalysesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeguard_analyses_failed_total",
			Help: "Analysis runs whose background stage failed.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codeguard_stage_duration_seconds",
			Help:    "Per-stage wall time.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		SandboxTier: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeguard_sandbox_tier_total",
			Help: "Sandbox executions by tier.",
		}, []string{"tier"}),
		LLMProvider: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeguard_llm_provider_total",
			Help: "Semantic verdicts by answering provider.",
		}, []string{"provider"}),
	}
	reg.MustRegister(
		m.AnalysesStarted,
		m.AnalysesCompleted,
		m.AnalysesFailed,
		m.StageDuration,
		m.SandboxTier,
		m.LLMProvider,
	)
	return m
}
