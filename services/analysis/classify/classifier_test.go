// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

func hit(kind, msg string, sev int, line int) datatypes.Finding {
	f := datatypes.Finding{Kind: kind, Found: true, Message: msg, Severity: sev}
	if line > 0 {
		f.Locations = []datatypes.Location{{Line: line}}
	}
	return f
}

func names(patterns []datatypes.BugPattern) []string {
	var out []string
	for _, p := range patterns {
		out = append(out, p.Name)
	}
	return out
}

func TestClassify_CleanRunYieldsSentinel(t *testing.T) {
	patterns := Classify(Input{})
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternNoBugs, patterns[0].Name)
	assert.Zero(t, patterns[0].Severity)
	assert.InDelta(t, 0.70, patterns[0].Confidence, 1e-9)

	assert.False(t, HasBugs(patterns))
	assert.Equal(t, "No bugs detected.", Summarize(patterns))
}

func TestClassify_SyntaxError(t *testing.T) {
	in := Input{Static: map[string]datatypes.Finding{
		datatypes.KeySyntaxError: hit(datatypes.KeySyntaxError, "syntax error at line 1: def f(a, b)", 9, 1),
	}}
	patterns := Classify(in)
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, PatternSyntaxError, p.Name)
	assert.GreaterOrEqual(t, p.Severity, 8)
	assert.LessOrEqual(t, p.Severity, 10)
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	assert.Equal(t, "line 1", p.Location)
}

func TestClassify_HallucinatedConfirmedAtRuntime(t *testing.T) {
	in := Input{
		Static: map[string]datatypes.Finding{
			datatypes.KeyHallucinatedObjects: hit(datatypes.KeyHallucinatedObjects, "references to undefined names: helper", 8, 3),
		},
		Runtime: map[string]datatypes.Finding{
			datatypes.KeyNameError: hit(datatypes.KeyNameError, "NameError: name 'helper' is not defined", 0, 0),
		},
	}
	patterns := Classify(in)
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, PatternHallucinated, p.Name)
	assert.InDelta(t, 0.95, p.Confidence, 1e-9)
	assert.Equal(t, StageDynamic, p.DetectionStage)
	assert.Contains(t, p.Description, "confirmed at runtime")
}

func TestClassify_HallucinatedStaticOnly(t *testing.T) {
	in := Input{Static: map[string]datatypes.Finding{
		datatypes.KeyHallucinatedObjects: hit(datatypes.KeyHallucinatedObjects, "references to undefined names: helper", 8, 3),
	}}
	p := Classify(in)[0]
	assert.InDelta(t, 0.85, p.Confidence, 1e-9)
	assert.Equal(t, StageStatic, p.DetectionStage)
}

func TestClassify_WrongInputTypeDeduplicatedAcrossStages(t *testing.T) {
	in := Input{
		Static: map[string]datatypes.Finding{
			datatypes.KeyWrongInputType: hit(datatypes.KeyWrongInputType, "string literal passed to sqrt", 6, 2),
		},
		Runtime: map[string]datatypes.Finding{
			datatypes.KeyWrongInputType: hit(datatypes.KeyWrongInputType, "TypeError: must be real number", 0, 0),
		},
	}
	patterns := Classify(in)
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, PatternWrongInputType, p.Name)
	assert.Equal(t, StageDynamic, p.DetectionStage)
	assert.InDelta(t, 0.85, p.Confidence, 1e-9)
	assert.Equal(t, "line 2", p.Location)
}

func TestClassify_LinguisticVerdicts(t *testing.T) {
	in := Input{Verdicts: map[string]datatypes.AggregatedVerdict{
		datatypes.QuestionNPC: {
			Found: true, Confidence: 0.88,
			Findings: []string{"debug prints not requested"},
		},
		datatypes.QuestionMissingFeature: {
			Found: true, Confidence: 0.72,
			Findings: []string{"no remove implementation"},
		},
		datatypes.QuestionMisinterpretation: {Found: false},
	}}
	patterns := Classify(in)
	assert.ElementsMatch(t, []string{PatternNPC, PatternMissingFeature}, names(patterns))

	for _, p := range patterns {
		assert.Equal(t, StageLinguistic, p.DetectionStage)
	}
}

func TestClassify_NPCConfidenceFromEvidence(t *testing.T) {
	in := Input{Verdicts: map[string]datatypes.AggregatedVerdict{
		datatypes.QuestionNPC: {Found: true, Findings: []string{"x"}},
	}}
	p := Classify(in)[0]
	// No evidence confidence recorded, table default applies.
	assert.InDelta(t, 0.70, p.Confidence, 1e-9)
}

func TestClassify_VerdictSuppressesStaticHeuristic(t *testing.T) {
	in := Input{
		Static: map[string]datatypes.Finding{
			datatypes.KeyNPC: hit(datatypes.KeyNPC, "hardcoded admin check", 5, 4),
		},
		Verdicts: map[string]datatypes.AggregatedVerdict{
			datatypes.QuestionNPC: {Found: false},
		},
	}
	patterns := Classify(in)
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternNoBugs, patterns[0].Name)
}

func TestClassify_StaticHeuristicStandsBeforeLinguisticStage(t *testing.T) {
	in := Input{Static: map[string]datatypes.Finding{
		datatypes.KeyNPC: hit(datatypes.KeyNPC, "hardcoded admin check", 5, 4),
	}}
	patterns := Classify(in)
	require.Len(t, patterns, 1)
	assert.Equal(t, PatternNPC, patterns[0].Name)
	assert.Equal(t, StageStatic, patterns[0].DetectionStage)
}

func TestClassify_SynthesizedMisinterpretation(t *testing.T) {
	in := Input{Static: map[string]datatypes.Finding{
		datatypes.KeySyntaxError:          hit(datatypes.KeySyntaxError, "bad parse", 9, 1),
		datatypes.KeyHallucinatedObjects:  hit(datatypes.KeyHallucinatedObjects, "undefined names", 8, 2),
		datatypes.KeyIncompleteGeneration: hit(datatypes.KeyIncompleteGeneration, "empty body", 7, 3),
		datatypes.KeySillyMistakes:        hit(datatypes.KeySillyMistakes, "identical branches", 6, 4),
	}}
	patterns := Classify(in)
	require.Len(t, patterns, 5)
	last := patterns[len(patterns)-1]
	assert.Equal(t, PatternMisinterpretation, last.Name)
	assert.InDelta(t, 0.60, last.Confidence, 1e-9)
}

func TestClassify_NoDoubleSynthesis(t *testing.T) {
	in := Input{
		Static: map[string]datatypes.Finding{
			datatypes.KeySyntaxError:          hit(datatypes.KeySyntaxError, "bad parse", 9, 1),
			datatypes.KeyHallucinatedObjects:  hit(datatypes.KeyHallucinatedObjects, "undefined names", 8, 2),
			datatypes.KeyIncompleteGeneration: hit(datatypes.KeyIncompleteGeneration, "empty body", 7, 3),
			datatypes.KeySillyMistakes:        hit(datatypes.KeySillyMistakes, "identical branches", 6, 4),
		},
		Verdicts: map[string]datatypes.AggregatedVerdict{
			datatypes.QuestionMisinterpretation: {Found: true, Confidence: 0.8, Findings: []string{"wrong intent"}},
		},
	}
	patterns := Classify(in)
	count := 0
	for _, p := range patterns {
		if p.Name == PatternMisinterpretation {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestClassify_Deterministic(t *testing.T) {
	in := Input{
		Static: map[string]datatypes.Finding{
			datatypes.KeyHallucinatedObjects: hit(datatypes.KeyHallucinatedObjects, "undefined names", 8, 2),
			datatypes.KeyMissingCornerCase:   hit(datatypes.KeyMissingCornerCase, "unguarded division", 5, 7),
		},
		Runtime: map[string]datatypes.Finding{
			datatypes.KeyMissingCornerCase: hit(datatypes.KeyMissingCornerCase, "ZeroDivisionError: division by zero", 0, 0),
		},
		Verdicts: map[string]datatypes.AggregatedVerdict{
			datatypes.QuestionPromptBias: {Found: true, Confidence: 0.9, Findings: []string{"hardcoded 15"}},
		},
	}
	first := Classify(in)
	second := Classify(in)
	assert.Equal(t, first, second)
}

func TestSummarize(t *testing.T) {
	patterns := []datatypes.BugPattern{
		{Name: PatternSyntaxError, Severity: 9, Description: "missing colon"},
		{Name: PatternMissingCornerCase, Severity: 5, Description: "unguarded division"},
	}
	s := Summarize(patterns)
	assert.Contains(t, s, "Found 2 bug pattern(s) with Critical severity.")
	assert.Contains(t, s, "1. Syntax Error: missing colon")
	assert.Contains(t, s, "2. Missing Corner Case: unguarded division")

	assert.Equal(t, 9, OverallSeverity(patterns))
	assert.True(t, HasBugs(patterns))
}

func TestCatalog(t *testing.T) {
	defs := Catalog()
	assert.Len(t, defs, 10)
	seen := make(map[string]struct{})
	for _, d := range defs {
		assert.NotEmpty(t, d.Name)
		assert.NotEmpty(t, d.Stage)
		assert.NotEmpty(t, d.SeverityRange)
		assert.NotEmpty(t, d.Description)
		assert.NotEmpty(t, d.Example)
		seen[d.Name] = struct{}{}
	}
	assert.Len(t, seen, 10)

	// The caller gets a copy.
	defs[0].Name = "mutated"
	assert.NotEqual(t, "mutated", Catalog()[0].Name)
}
