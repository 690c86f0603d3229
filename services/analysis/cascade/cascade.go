// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package cascade answers four linguistic questions about generated
// code (unrequested additions, hardcoded examples, missing features,
// misinterpretation) through three escalating layers: regex rules, tree
// verification, and an external reasoning service.
//
// Two protocols are in use. The aggregation protocol runs all layers as
// independent votes and reconciles them; the verdict protocol treats
// the first two layers as evidence collectors and asks the reasoning
// service for the single decision, degrading to a deterministic
// fallback verdict when the service is unreachable.
package cascade

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/services/analysis/aggregate"
	"github.com/rony31416/codeguard-test/services/analysis/ast"
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
	"github.com/rony31416/codeguard-test/services/llm"
)

const (
	// VerdictByLLM marks a verdict rendered by the reasoning service.
	VerdictByLLM = "llm"
	// VerdictByFallback marks a deterministic evidence-only verdict.
	VerdictByFallback = "fallback"

	defaultSemanticConcurrency = 4
	defaultSemanticTimeout     = 60 * time.Second

	// skipConfidence is the agreement bar above which the semantic
	// layer is skipped for aggregation-protocol questions.
	skipConfidence = 0.9
)

// Questions lists the cascade's questions in evaluation order.
var Questions = []string{
	datatypes.QuestionNPC,
	datatypes.QuestionPromptBias,
	datatypes.QuestionMissingFeature,
	datatypes.QuestionMisinterpretation,
}

// verdictQuestions use the verdict protocol; the rest aggregate.
var verdictQuestions = map[string]bool{
	datatypes.QuestionNPC:               true,
	datatypes.QuestionMissingFeature:    true,
	datatypes.QuestionMisinterpretation: true,
}

// Analyzer runs the cascade. Construct once and share; the reasoning
// client is injected, never discovered through globals.
//
// Thread Safety: safe for concurrent use. Concurrent semantic calls
// are bounded by a weighted semaphore.
type Analyzer struct {
	client          llm.LLMClient
	logger          *logging.Logger
	sem             *semaphore.Weighted
	semanticTimeout time.Duration
}

// AnalyzerOption customizes an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithSemanticConcurrency bounds in-flight reasoning calls.
func WithSemanticConcurrency(n int64) AnalyzerOption {
	return func(a *Analyzer) {
		if n > 0 {
			a.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithSemanticTimeout bounds each reasoning call.
func WithSemanticTimeout(d time.Duration) AnalyzerOption {
	return func(a *Analyzer) {
		if d > 0 {
			a.semanticTimeout = d
		}
	}
}

// NewAnalyzer constructs the cascade. client may be nil; every verdict
// then comes from the fallback path.
func NewAnalyzer(client llm.LLMClient, logger *logging.Logger, opts ...AnalyzerOption) *Analyzer {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Analyzer{
		client:          client,
		logger:          logger,
		sem:             semaphore.NewWeighted(defaultSemanticConcurrency),
		semanticTimeout: defaultSemanticTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze answers all four questions. mod may be nil when the snippet
// did not parse; the structural layer then contributes nothing.
//
// Outputs:
//   - one AggregatedVerdict per question, keyed by question id.
func (a *Analyzer) Analyze(ctx context.Context, prompt, code string, mod *ast.Module) map[string]datatypes.AggregatedVerdict {
	verdicts := make(map[string]datatypes.AggregatedVerdict, len(Questions))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, question := range Questions {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			v := a.analyzeQuestion(ctx, q, prompt, code, mod)
			mu.Lock()
			verdicts[q] = v
			mu.Unlock()
		}(question)
	}
	wg.Wait()
	return verdicts
}

func (a *Analyzer) analyzeQuestion(ctx context.Context, question, prompt, code string, mod *ast.Module) datatypes.AggregatedVerdict {
	rule := ruleLayer(question, prompt, code)
	structural := structuralLayer(question, prompt, mod)

	if verdictQuestions[question] {
		return a.verdictProtocol(ctx, question, prompt, code, rule, structural)
	}
	return a.aggregationProtocol(ctx, question, prompt, code, rule, structural)
}

// aggregationProtocol runs the layers as independent votes. The
// semantic layer is skipped when the cheap layers already agree at
// high confidence.
func (a *Analyzer) aggregationProtocol(ctx context.Context, question, prompt, code string, rule, structural datatypes.LayerResult) datatypes.AggregatedVerdict {
	layers := []datatypes.LayerResult{rule, structural}

	if !a.cheapLayersAgree(rule, structural) {
		semantic, err := a.semanticLayer(ctx, question, prompt, code, layers)
		if err != nil {
			a.logger.Warn("semantic layer unavailable, aggregating without it",
				"question", question, "error", err)
		} else {
			layers = append(layers, semantic)
		}
	}

	verdict := aggregate.Aggregate(layers)
	verdict.APIUsed = a.apiUsed()
	return verdict
}

// cheapLayersAgree reports whether rule and structural agree strongly
// enough to make the reasoning call redundant.
func (a *Analyzer) cheapLayersAgree(rule, structural datatypes.LayerResult) bool {
	if rule.Found != structural.Found {
		return false
	}
	if !rule.Found {
		return true
	}
	return rule.Confidence >= skipConfidence && structural.Confidence >= skipConfidence
}

// verdictProtocol treats rule and structural output as evidence only
// and asks the reasoning service for the decision. The aggregation
// pass still runs underneath to keep the consensus and reliability
// fields populated; the semantic answer overrides the decision fields.
func (a *Analyzer) verdictProtocol(ctx context.Context, question, prompt, code string, rule, structural datatypes.LayerResult) datatypes.AggregatedVerdict {
	evidence := []datatypes.LayerResult{rule, structural}

	semantic, err := a.semanticLayer(ctx, question, prompt, code, evidence)
	if err != nil {
		a.logger.Warn("reasoning service unavailable, using fallback verdict",
			"question", question, "error", err)
		return fallbackVerdict(rule, structural)
	}

	verdict := aggregate.Aggregate([]datatypes.LayerResult{rule, structural, semantic})
	verdict.Found = semantic.Found
	verdict.Confidence = semantic.Confidence
	if semantic.Severity > 0 {
		verdict.Severity = float64(semantic.Severity)
	}
	verdict.PrimaryLayer = datatypes.LayerSemantic
	if msgs := messages(semantic); len(msgs) > 0 {
		verdict.Findings = msgs
		verdict.Count = len(msgs)
	} else if !semantic.Found {
		verdict.Findings = nil
		verdict.Count = 0
	}
	verdict.VerdictBy = VerdictByLLM
	verdict.APIUsed = a.apiUsed()
	return verdict
}

// fallbackVerdict renders a decision from evidence alone: structural
// evidence outranks rule evidence, messages are unioned, confidence is
// capped at 0.95 since nothing reasoned about the case.
func fallbackVerdict(rule, structural datatypes.LayerResult) datatypes.AggregatedVerdict {
	verdict := aggregate.Aggregate([]datatypes.LayerResult{rule, structural})

	preferred := structural
	if len(structural.Issues) == 0 {
		preferred = rule
	}

	var findings []string
	seen := make(map[string]struct{})
	for _, lr := range []datatypes.LayerResult{structural, rule} {
		for _, msg := range messages(lr) {
			if _, dup := seen[msg]; dup {
				continue
			}
			seen[msg] = struct{}{}
			findings = append(findings, msg)
		}
	}

	verdict.Found = len(findings) > 0
	verdict.Findings = findings
	verdict.Count = len(findings)
	if verdict.Confidence > 0.95 {
		verdict.Confidence = 0.95
	}
	if verdict.Found {
		verdict.PrimaryLayer = preferred.Layer
		if verdict.Severity == 0 {
			verdict.Severity = float64(preferred.Severity)
		}
	}
	verdict.VerdictBy = VerdictByFallback
	return verdict
}

func messages(lr datatypes.LayerResult) []string {
	var msgs []string
	for _, issue := range lr.Issues {
		if issue.Message != "" {
			msgs = append(msgs, issue.Message)
		}
	}
	return msgs
}

func (a *Analyzer) apiUsed() string {
	type used interface {
		APIUsed() string
	}
	if u, ok := a.client.(used); ok {
		return u.APIUsed()
	}
	return ""
}
