// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony31416/codeguard-test/services/analysis/cascade"
	"github.com/rony31416/codeguard-test/services/analysis/classify"
	"github.com/rony31416/codeguard-test/services/analysis/sandbox"
	"github.com/rony31416/codeguard-test/services/llm"
)

type constLLM struct {
	response string
}

func (c *constLLM) Name() string    { return "const" }
func (c *constLLM) APIUsed() string { return "const" }

func (c *constLLM) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return c.response, nil
}

// newTestService wires a service with no Docker, no interpreter, and
// the given reasoning client, so tests stay hermetic.
func newTestService(t *testing.T, client llm.LLMClient, opts ...ServiceOption) *Service {
	t.Helper()
	exec := sandbox.NewExecutor(sandbox.Config{
		DisableDocker: true,
		PythonBin:     "definitely-not-a-python",
	}, nil)
	svc := NewService(exec, cascade.NewAnalyzer(client, nil), nil, nil, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func waitComplete(t *testing.T, svc *Service, id string) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = svc.Get(id)
		require.NoError(t, err)
		return snap.Status == "complete"
	}, 10*time.Second, 10*time.Millisecond)
	return snap
}

func TestService_AnalyzeReturnsPreliminarySnapshot(t *testing.T) {
	svc := newTestService(t, nil)

	snap, err := svc.Analyze(context.Background(), "add two numbers", "def add(a, b):\n    return a + b")
	require.NoError(t, err)
	assert.Equal(t, "processing", snap.Status)
	assert.NotEmpty(t, snap.ID)
	assert.NotEmpty(t, snap.Patterns)
	assert.NotEmpty(t, snap.ExecutionLogs)
	assert.Nil(t, snap.Linguistic)
}

func TestService_CleanRunCompletesWithSentinel(t *testing.T) {
	svc := newTestService(t, nil)

	snap, err := svc.Analyze(context.Background(), "add two numbers", "def add(a, b):\n    return a + b")
	require.NoError(t, err)

	final := waitComplete(t, svc, snap.ID)
	require.Len(t, final.Patterns, 1)
	assert.Equal(t, classify.PatternNoBugs, final.Patterns[0].Name)
	assert.False(t, final.HasBugs)
	assert.Zero(t, final.OverallSeverity)
	assert.Equal(t, "No bugs detected.", final.Summary)
	assert.NotNil(t, final.Linguistic)
}

func TestService_GetUnknownRun(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Get("no-such-id")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestService_SyntaxErrorStillAnalyzesPartially(t *testing.T) {
	svc := newTestService(t, nil)

	code := "def f(a, b)\n    return a + b\nresult = helper(1)"
	snap, err := svc.Analyze(context.Background(), "add two numbers", code)
	require.NoError(t, err)

	var syntaxPattern, hallucinated bool
	for _, p := range snap.Patterns {
		switch p.Name {
		case classify.PatternSyntaxError:
			syntaxPattern = true
			assert.GreaterOrEqual(t, p.Severity, 8)
			assert.LessOrEqual(t, p.Severity, 10)
		case classify.PatternHallucinated:
			// Partial analysis still caught the undefined helper.
			hallucinated = true
		}
	}
	assert.True(t, syntaxPattern)
	assert.True(t, hallucinated)
}

func TestService_MisinterpretationScenario(t *testing.T) {
	svc := newTestService(t, nil)

	snap, err := svc.Analyze(context.Background(), "add two numbers", "print(a + b)")
	require.NoError(t, err)
	final := waitComplete(t, svc, snap.ID)

	var misinterpretation *float64
	for _, p := range final.Patterns {
		if p.Name == classify.PatternMisinterpretation {
			c := p.Confidence
			misinterpretation = &c
		}
	}
	require.NotNil(t, misinterpretation, "expected a misinterpretation pattern")
	assert.GreaterOrEqual(t, *misinterpretation, 0.8)
}

func TestService_DeterministicWithConstantReasoner(t *testing.T) {
	client := &constLLM{response: `{"found": true, "confidence": 0.8, "severity": 6, "issues": ["same every time"]}`}
	svc := newTestService(t, client)

	prompt := "add two numbers"
	code := "print(a + b)"

	first, err := svc.Analyze(context.Background(), prompt, code)
	require.NoError(t, err)
	second, err := svc.Analyze(context.Background(), prompt, code)
	require.NoError(t, err)

	a := waitComplete(t, svc, first.ID)
	b := waitComplete(t, svc, second.ID)
	assert.Equal(t, a.Patterns, b.Patterns)
	assert.Equal(t, a.Summary, b.Summary)
	assert.Equal(t, a.Linguistic, b.Linguistic)
}

func TestService_PatternListNeverEmpty(t *testing.T) {
	svc := newTestService(t, nil)

	for _, code := range []string{
		"def add(a, b):\n    return a + b",
		"x = ",
		"print(undefined_thing)",
	} {
		snap, err := svc.Analyze(context.Background(), "do something", code)
		require.NoError(t, err)
		assert.NotEmpty(t, snap.Patterns, code)
		final := waitComplete(t, svc, snap.ID)
		assert.NotEmpty(t, final.Patterns, code)
	}
}

func TestService_SweepsCompletedRuns(t *testing.T) {
	svc := newTestService(t, nil,
		WithRunTTL(50*time.Millisecond),
		WithSweepInterval(10*time.Millisecond))

	snap, err := svc.Analyze(context.Background(), "add two numbers", "def add(a, b):\n    return a + b")
	require.NoError(t, err)

	// Pending runs are never evicted; once complete and past the TTL
	// the run disappears from the store.
	require.Eventually(t, func() bool {
		_, err := svc.Get(snap.ID)
		return errors.Is(err, ErrRunNotFound)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_ShutdownWaitsForBackground(t *testing.T) {
	svc := newTestService(t, nil)

	snap, err := svc.Analyze(context.Background(), "add two numbers", "def add(a, b):\n    return a + b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	// The run left the pending set one way or the other.
	final, err := svc.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "complete", final.Status)
}
