// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package analysis orchestrates the detection pipeline. The static and
// dynamic stages run synchronously within the request; the linguistic
// cascade runs as a background task per run, and callers poll until
// the run leaves the pending set.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/services/analysis/ast"
	"github.com/rony31416/codeguard-test/services/analysis/cascade"
	"github.com/rony31416/codeguard-test/services/analysis/classify"
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
	"github.com/rony31416/codeguard-test/services/analysis/sandbox"
	"github.com/rony31416/codeguard-test/services/analysis/static"
)

// ErrRunNotFound is returned when polling an unknown analysis id.
var ErrRunNotFound = errors.New("analysis run not found")

// Runs are ephemeral; completed ones are swept out after a TTL so the
// in-memory store stays bounded under sustained traffic.
const (
	defaultRunTTL        = time.Hour
	defaultSweepInterval = time.Minute
)

// Service sequences the pipeline stages and owns all run state.
//
// Thread Safety: safe for concurrent use. The run store and pending
// set share one mutex; background tasks are tracked so Shutdown can
// wait for them.
type Service struct {
	parser    *ast.Parser
	detectors *static.Runner
	executor  *sandbox.Executor
	cascade   *cascade.Analyzer
	logger    *logging.Logger
	metrics   *Metrics

	runTTL        time.Duration
	sweepInterval time.Duration

	mu      sync.Mutex
	runs    map[string]*Run
	pending map[string]struct{}

	bg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ServiceOption tunes service behavior.
type ServiceOption func(*Service)

// WithRunTTL overrides how long a completed run stays pollable.
func WithRunTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.runTTL = d
		}
	}
}

// WithSweepInterval overrides how often completed runs are swept.
func WithSweepInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.sweepInterval = d
		}
	}
}

// NewService wires the pipeline. All collaborators are owned by the
// caller except the background context, which the service manages.
func NewService(executor *sandbox.Executor, analyzer *cascade.Analyzer, logger *logging.Logger, metrics *Metrics, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		parser:        ast.NewParser(),
		detectors:     static.NewRunner(logger),
		executor:      executor,
		cascade:       analyzer,
		logger:        logger,
		metrics:       metrics,
		runTTL:        defaultRunTTL,
		sweepInterval: defaultSweepInterval,
		runs:          make(map[string]*Run),
		pending:       make(map[string]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bg.Add(1)
	go s.sweepRuns()
	return s
}

// Metrics exposes the service's collectors for the metrics endpoint.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Analyze runs the synchronous stages, schedules the background
// linguistic stage, and returns the preliminary snapshot.
//
// Description:
//
//	Static and dynamic failures are caught per stage and recorded in
//	the run's execution logs; later stages still run. The returned
//	snapshot always reports status "processing"; callers poll Get
//	until the background stage completes.
func (s *Service) Analyze(ctx context.Context, prompt, code string) (Snapshot, error) {
	s.metrics.AnalysesStarted.Inc()

	run := &Run{
		ID:        uuid.NewString(),
		State:     datatypes.StatePending,
		Prompt:    prompt,
		Code:      code,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.pending[run.ID] = struct{}{}
	s.mu.Unlock()

	staticFindings, mod := s.staticStage(ctx, run)
	if mod != nil {
		defer mod.Close()
	}
	outcome, runtimeFindings := s.dynamicStage(ctx, run)

	patterns := classify.Classify(classify.Input{
		Static:  staticFindings,
		Runtime: runtimeFindings,
		Sandbox: outcome,
	})

	s.mu.Lock()
	run.Patterns = patterns
	run.OverallSeverity = classify.OverallSeverity(patterns)
	run.HasBugs = classify.HasBugs(patterns)
	run.Summary = classify.Summarize(patterns)
	run.State = datatypes.StateLinguisticProcessing
	run.UpdatedAt = time.Now().UTC()
	snap := run.snapshot(true)
	s.mu.Unlock()

	s.bg.Add(1)
	go s.linguisticStage(run.ID, prompt, code, staticFindings, runtimeFindings, outcome)

	return snap, nil
}

// Get returns the current snapshot for a run. Status is "processing"
// while the run is still in the pending set.
func (s *Service) Get(id string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	_, pending := s.pending[id]
	return run.snapshot(pending), nil
}

// Shutdown cancels background work and waits for in-flight tasks.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// staticStage parses the snippet and runs the detector batch. A parse
// failure is not a stage failure; the syntax detector reports it and
// partial analysis continues on whatever tree was recovered.
func (s *Service) staticStage(ctx context.Context, run *Run) (map[string]datatypes.Finding, *ast.Module) {
	start := time.Now()
	defer func() {
		s.metrics.StageDuration.WithLabelValues("static").Observe(time.Since(start).Seconds())
	}()

	mod, err := s.parser.Parse(ctx, run.Code)
	if err != nil {
		s.appendLog(run, datatypes.StateStaticDone, fmt.Sprintf("static: parse unavailable: %v", err))
		mod = nil
	}

	findings := s.detectors.Run(ctx, &static.Input{
		Prompt: run.Prompt,
		Source: run.Code,
		Lines:  splitLines(run.Code),
		Module: mod,
	})
	for key, f := range findings {
		if f.Err != "" {
			s.appendLog(run, run.State, fmt.Sprintf("static: %s: %s", key, f.Err))
		}
	}
	s.appendLog(run, datatypes.StateStaticDone, fmt.Sprintf("static: %d detectors reported", len(findings)))
	return findings, mod
}

// dynamicStage executes the snippet in the sandbox and classifies any
// runtime failure into detector-shaped findings.
func (s *Service) dynamicStage(ctx context.Context, run *Run) (datatypes.SandboxOutcome, map[string]datatypes.Finding) {
	start := time.Now()
	defer func() {
		s.metrics.StageDuration.WithLabelValues("dynamic").Observe(time.Since(start).Seconds())
	}()

	outcome := s.executor.Execute(ctx, run.Code)
	s.metrics.SandboxTier.WithLabelValues(outcome.Tier).Inc()

	switch {
	case outcome.Skipped:
		s.appendLog(run, datatypes.StateDynamicDone, "dynamic: skipped: "+outcome.Message)
	case outcome.Success:
		s.appendLog(run, datatypes.StateDynamicDone, fmt.Sprintf("dynamic: executed cleanly via %s", outcome.Tier))
	default:
		s.appendLog(run, datatypes.StateDynamicDone,
			fmt.Sprintf("dynamic: %s via %s: %s", outcome.ErrorKind, outcome.Tier, outcome.Message))
	}

	return outcome, sandbox.ClassifyRuntime(outcome)
}

// linguisticStage runs the cascade in the background, re-classifies
// with all three result sets, and retires the run from the pending
// set. Removal happens on every exit path; polling callers must never
// wait forever.
func (s *Service) linguisticStage(id, prompt, code string, staticFindings, runtimeFindings map[string]datatypes.Finding, outcome datatypes.SandboxOutcome) {
	defer s.bg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	start := time.Now()
	defer func() {
		s.metrics.StageDuration.WithLabelValues("linguistic").Observe(time.Since(start).Seconds())
	}()

	if s.ctx.Err() != nil {
		s.failBackground(id, "linguistic: shutdown before start")
		return
	}

	// The request's module was scoped to the request; the background
	// task parses its own copy.
	mod, err := s.parser.Parse(s.ctx, code)
	if err == nil {
		defer mod.Close()
	} else {
		mod = nil
	}

	verdicts := s.cascade.Analyze(s.ctx, prompt, code, mod)
	if s.ctx.Err() != nil {
		s.failBackground(id, "linguistic: canceled during cascade")
		return
	}

	patterns := classify.Classify(classify.Input{
		Static:   staticFindings,
		Runtime:  runtimeFindings,
		Sandbox:  outcome,
		Verdicts: verdicts,
	})

	for _, v := range verdicts {
		if v.APIUsed != "" {
			s.metrics.LLMProvider.WithLabelValues(v.APIUsed).Inc()
			break
		}
	}

	s.mu.Lock()
	if run, ok := s.runs[id]; ok {
		run.Patterns = patterns
		run.OverallSeverity = classify.OverallSeverity(patterns)
		run.HasBugs = classify.HasBugs(patterns)
		run.Summary = classify.Summarize(patterns)
		run.Linguistic = verdicts
		run.State = datatypes.StateComplete
		run.UpdatedAt = time.Now().UTC()
		run.ExecutionLogs = append(run.ExecutionLogs, "linguistic: cascade complete")
	}
	s.mu.Unlock()
	s.metrics.AnalysesCompleted.Inc()
}

// sweepRuns evicts completed runs whose last update is older than the
// TTL. Pending runs are never evicted; the background stage owns their
// lifetime.
func (s *Service) sweepRuns() {
	defer s.bg.Done()
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-s.runTTL)
			s.mu.Lock()
			for id, run := range s.runs {
				if _, pending := s.pending[id]; pending {
					continue
				}
				if run.UpdatedAt.Before(cutoff) {
					delete(s.runs, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// failBackground leaves the run in its last-good preliminary state and
// records why the linguistic stage never finished.
func (s *Service) failBackground(id, reason string) {
	s.metrics.AnalysesFailed.Inc()
	s.logger.Warn("background analysis abandoned", "run_id", id, "reason", reason)
	s.mu.Lock()
	if run, ok := s.runs[id]; ok {
		run.ExecutionLogs = append(run.ExecutionLogs, reason)
		run.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()
}

func (s *Service) appendLog(run *Run, state datatypes.RunState, msg string) {
	s.mu.Lock()
	run.ExecutionLogs = append(run.ExecutionLogs, msg)
	run.State = state
	run.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()
}

func splitLines(code string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(code); i++ {
		if code[i] == '\n' {
			lines = append(lines, code[start:i])
			start = i + 1
		}
	}
	return append(lines, code[start:])
}
