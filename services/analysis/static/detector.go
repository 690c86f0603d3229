// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package static implements the fault-isolated detector framework.
//
// Each detector inspects the snippet (source text plus the parsed,
// possibly partial, tree) and returns one Finding. The framework wraps
// every call so a panicking detector yields a Finding with its Err
// field set instead of aborting the batch. Detectors share only
// read-only input and run concurrently within a run.
package static

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/services/analysis/ast"
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// Input is the read-only material every detector receives.
type Input struct {
	// Prompt is the request the snippet was generated from.
	Prompt string

	// Source is the raw snippet text.
	Source string

	// Lines is Source split into lines, shared to avoid re-splitting
	// in every detector.
	Lines []string

	// Module is the parsed tree. It may be a partial recovery when the
	// full source does not parse; it is nil only when parsing itself
	// failed outright.
	Module *ast.Module
}

// Detector is one independent static check.
type Detector interface {
	// Name is the human-readable detector name used in failure
	// messages.
	Name() string

	// Key is the result-map key this detector reports under.
	Key() string

	// Detect runs the check. Implementations must not panic past this
	// boundary; the runner recovers anyway, but a recovered panic is
	// recorded as a detector failure.
	Detect(ctx context.Context, in *Input) datatypes.Finding
}

// Runner executes a registered list of detectors over one input.
//
// Thread Safety: Runner is immutable after construction and safe for
// concurrent use.
type Runner struct {
	detectors []Detector
	logger    *logging.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDetectors replaces the default detector set.
func WithDetectors(detectors ...Detector) RunnerOption {
	return func(r *Runner) {
		r.detectors = detectors
	}
}

// NewRunner creates a Runner with the full default detector set.
func NewRunner(logger *logging.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Runner{
		logger: logger,
		detectors: []Detector{
			&SyntaxDetector{},
			&HallucinationDetector{},
			&IncompleteDetector{},
			&SillyMistakeDetector{},
			&WrongAttributeDetector{},
			&WrongInputTypeDetector{},
			&PromptBiasDetector{},
			&NPCDetector{},
			&CornerCaseDetector{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every detector concurrently and returns a Finding per
// result key. A detector failure is recorded on its Finding, never
// propagated; Run itself only fails on context cancellation.
func (r *Runner) Run(ctx context.Context, in *Input) map[string]datatypes.Finding {
	results := make(map[string]datatypes.Finding, len(r.detectors))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, d := range r.detectors {
		d := d
		g.Go(func() error {
			finding := r.safeDetect(ctx, d, in)
			mu.Lock()
			results[d.Key()] = finding
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// safeDetect isolates one detector call.
func (r *Runner) safeDetect(ctx context.Context, d Detector, in *Input) (finding datatypes.Finding) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("detector panicked", "detector", d.Name(), "panic", fmt.Sprintf("%v", rec))
			finding = datatypes.Finding{
				Kind:  d.Key(),
				Found: false,
				Err:   fmt.Sprintf("%s failed: %v", d.Name(), rec),
			}
		}
	}()
	return d.Detect(ctx, in)
}
