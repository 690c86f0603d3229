// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package classify maps the raw stage outputs onto the fixed bug
// taxonomy. Classification is deterministic and order-sensitive:
// identical inputs always yield an identical pattern list, and the
// list is never empty (a clean run gets the sentinel pattern).
package classify

import (
	"fmt"
	"math"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// Pattern names.
const (
	PatternSyntaxError       = "Syntax Error"
	PatternHallucinated      = "Hallucinated Object"
	PatternIncomplete        = "Incomplete Generation"
	PatternSillyMistake      = "Silly Mistake"
	PatternWrongAttribute    = "Wrong Attribute"
	PatternWrongInputType    = "Wrong Input Type"
	PatternNPC               = "Non-Prompted Consideration"
	PatternPromptBiased      = "Prompt-Biased Code"
	PatternMissingCornerCase = "Missing Corner Case"
	PatternMissingFeature    = "Missing Feature"
	PatternMisinterpretation = "Misinterpretation"
	PatternNoBugs            = "No Bugs Detected"
)

// Detection stages.
const (
	StageStatic     = "static"
	StageDynamic    = "dynamic"
	StageLinguistic = "linguistic"
)

// synthThreshold is the pattern count above which a catch-all
// misinterpretation signal is added.
const synthThreshold = 3

// Input carries every stage's raw output into classification. Verdicts
// is nil until the background linguistic stage completes; preliminary
// classification simply sees no linguistic evidence.
type Input struct {
	Static   map[string]datatypes.Finding
	Runtime  map[string]datatypes.Finding
	Sandbox  datatypes.SandboxOutcome
	Verdicts map[string]datatypes.AggregatedVerdict
}

// Classify maps all raw signals onto BugPattern entries.
//
// Description:
//
//	Rules fire in a fixed order so re-running on identical inputs
//	yields identical output. More than three non-trivial patterns
//	synthesize an extra low-confidence misinterpretation signal. A
//	clean run yields the single sentinel pattern, never an empty list.
func Classify(in Input) []datatypes.BugPattern {
	var patterns []datatypes.BugPattern
	add := func(p datatypes.BugPattern, contributing ...datatypes.Finding) {
		for _, f := range contributing {
			if f.Severity > p.Severity {
				p.Severity = f.Severity
			}
		}
		patterns = append(patterns, p)
	}

	if f, ok := found(in.Static, datatypes.KeySyntaxError); ok {
		add(datatypes.BugPattern{
			Name:           PatternSyntaxError,
			Severity:       9,
			Confidence:     1.0,
			Description:    f.Message,
			Location:       location(f),
			FixSuggestion:  "Fix the syntax error so the snippet parses",
			DetectionStage: StageStatic,
		}, f)
	}

	if f, ok := found(in.Static, datatypes.KeyHallucinatedObjects); ok {
		conf := 0.85
		stage := StageStatic
		desc := f.Message
		if rf, confirmed := found(in.Runtime, datatypes.KeyNameError); confirmed {
			conf = 0.95
			stage = StageDynamic
			desc = desc + "; confirmed at runtime: " + rf.Message
		}
		add(datatypes.BugPattern{
			Name:           PatternHallucinated,
			Severity:       8,
			Confidence:     conf,
			Description:    desc,
			Location:       location(f),
			FixSuggestion:  "Define or import the referenced names, or remove the references",
			DetectionStage: stage,
		}, f)
	} else if rf, ok := found(in.Runtime, datatypes.KeyNameError); ok {
		add(datatypes.BugPattern{
			Name:           PatternHallucinated,
			Severity:       8,
			Confidence:     0.95,
			Description:    rf.Message,
			FixSuggestion:  "Define or import the referenced names, or remove the references",
			DetectionStage: StageDynamic,
		}, rf)
	}

	if f, ok := found(in.Static, datatypes.KeyIncompleteGeneration); ok {
		add(datatypes.BugPattern{
			Name:           PatternIncomplete,
			Severity:       7,
			Confidence:     0.90,
			Description:    f.Message,
			Location:       location(f),
			FixSuggestion:  "Complete the unfinished bodies, assignments and markers",
			DetectionStage: StageStatic,
		}, f)
	}

	if f, ok := found(in.Static, datatypes.KeySillyMistakes); ok {
		add(datatypes.BugPattern{
			Name:           PatternSillyMistake,
			Severity:       6,
			Confidence:     0.80,
			Description:    f.Message,
			Location:       location(f),
			FixSuggestion:  "Review the flagged expressions for reversed or duplicated logic",
			DetectionStage: StageStatic,
		}, f)
	}

	patterns = appendWrongAttribute(patterns, in)
	patterns = appendWrongInputType(patterns, in)

	patterns = appendLinguistic(patterns, in, datatypes.QuestionNPC, datatypes.KeyNPC, datatypes.BugPattern{
		Name:          PatternNPC,
		Severity:      5,
		Confidence:    0.70,
		FixSuggestion: "Remove behavior the prompt did not ask for",
	})
	patterns = appendLinguistic(patterns, in, datatypes.QuestionPromptBias, datatypes.KeyPromptBiased, datatypes.BugPattern{
		Name:          PatternPromptBiased,
		Severity:      6,
		Confidence:    0.75,
		FixSuggestion: "Generalize hardcoded example values into parameters",
	})

	patterns = appendMissingCornerCase(patterns, in)

	if v, ok := in.Verdicts[datatypes.QuestionMissingFeature]; ok && v.Found {
		add(datatypes.BugPattern{
			Name:           PatternMissingFeature,
			Severity:       6,
			Confidence:     orDefault(v.Confidence, 0.65),
			Description:    describeVerdict(v, "requested features are missing"),
			FixSuggestion:  "Implement every feature the prompt enumerates",
			DetectionStage: StageLinguistic,
		})
	}

	if v, ok := in.Verdicts[datatypes.QuestionMisinterpretation]; ok && v.Found {
		add(datatypes.BugPattern{
			Name:           PatternMisinterpretation,
			Severity:       maxInt(7, int(math.Round(v.Severity))),
			Confidence:     orDefault(v.Confidence, 0.60),
			Description:    describeVerdict(v, "the code misunderstands the prompt"),
			FixSuggestion:  "Re-read the prompt and restructure the solution around its actual intent",
			DetectionStage: StageLinguistic,
		})
	}

	patterns = synthesize(patterns)

	if len(patterns) == 0 {
		patterns = append(patterns, datatypes.BugPattern{
			Name:           PatternNoBugs,
			Severity:       0,
			Confidence:     0.70,
			Description:    "No bug patterns detected in the analyzed code",
			DetectionStage: StageStatic,
		})
	}
	return patterns
}

func appendWrongAttribute(patterns []datatypes.BugPattern, in Input) []datatypes.BugPattern {
	rf, dynamic := found(in.Runtime, datatypes.KeyWrongAttribute)
	sf, static := found(in.Static, datatypes.KeyWrongAttribute)
	if !dynamic && !static {
		return patterns
	}

	p := datatypes.BugPattern{
		Name:          PatternWrongAttribute,
		Severity:      7,
		FixSuggestion: "Access the value with the container's own operations",
	}
	if dynamic {
		p.Confidence = 0.90
		p.DetectionStage = StageDynamic
		p.Description = rf.Message
		if static {
			p.Location = location(sf)
		}
	} else {
		p.Confidence = 0.75
		p.DetectionStage = StageStatic
		p.Description = sf.Message
		p.Location = location(sf)
	}
	return append(patterns, bumpSeverity(p, rf, sf))
}

// appendWrongInputType deduplicates across stages: when both the
// static detector and the runtime both flag it, one pattern is emitted
// at the dynamic stage's confidence.
func appendWrongInputType(patterns []datatypes.BugPattern, in Input) []datatypes.BugPattern {
	rf, dynamic := found(in.Runtime, datatypes.KeyWrongInputType)
	sf, static := found(in.Static, datatypes.KeyWrongInputType)
	if !dynamic && !static {
		return patterns
	}

	p := datatypes.BugPattern{
		Name:          PatternWrongInputType,
		Severity:      6,
		FixSuggestion: "Pass arguments of the type the callee expects",
	}
	if dynamic {
		p.Confidence = 0.85
		p.DetectionStage = StageDynamic
		p.Description = rf.Message
		if static {
			p.Location = location(sf)
		}
	} else {
		p.Confidence = 0.80
		p.DetectionStage = StageStatic
		p.Description = sf.Message
		p.Location = location(sf)
	}
	return append(patterns, bumpSeverity(p, rf, sf))
}

func appendMissingCornerCase(patterns []datatypes.BugPattern, in Input) []datatypes.BugPattern {
	rf, dynamic := found(in.Runtime, datatypes.KeyMissingCornerCase)
	sf, static := found(in.Static, datatypes.KeyMissingCornerCase)
	if !dynamic && !static {
		return patterns
	}

	p := datatypes.BugPattern{
		Name:          PatternMissingCornerCase,
		Severity:      5,
		FixSuggestion: "Guard the division against a zero divisor",
	}
	if dynamic {
		p.Confidence = 0.90
		p.DetectionStage = StageDynamic
		p.Description = rf.Message
		if static {
			p.Location = location(sf)
		}
	} else {
		p.Confidence = 0.65
		p.DetectionStage = StageStatic
		p.Description = sf.Message
		p.Location = location(sf)
	}
	return append(patterns, bumpSeverity(p, rf, sf))
}

// appendLinguistic merges a static detector hit with the cascade
// verdict for the same concern; the verdict's confidence wins when the
// linguistic stage has spoken.
func appendLinguistic(patterns []datatypes.BugPattern, in Input, question, staticKey string, base datatypes.BugPattern) []datatypes.BugPattern {
	v, hasVerdict := in.Verdicts[question]
	sf, static := found(in.Static, staticKey)

	switch {
	case hasVerdict && v.Found:
		base.Confidence = orDefault(v.Confidence, base.Confidence)
		base.Description = describeVerdict(v, strings.ToLower(base.Name)+" detected")
		base.DetectionStage = StageLinguistic
		if static {
			base.Location = location(sf)
		}
		if sev := int(math.Round(v.Severity)); sev > base.Severity {
			base.Severity = sev
		}
	case !hasVerdict && static:
		base.Description = sf.Message
		base.Location = location(sf)
		base.DetectionStage = StageStatic
		if sf.Confidence > 0 {
			base.Confidence = sf.Confidence
		}
		if sf.Severity > base.Severity {
			base.Severity = sf.Severity
		}
	default:
		// The linguistic stage overrides the static heuristic once it
		// has run; a not-found verdict suppresses the static hit.
		return patterns
	}
	return append(patterns, base)
}

// synthesize adds a catch-all misinterpretation signal when the run
// trips more than three distinct patterns.
func synthesize(patterns []datatypes.BugPattern) []datatypes.BugPattern {
	if len(patterns) <= synthThreshold {
		return patterns
	}
	for _, p := range patterns {
		if p.Name == PatternMisinterpretation {
			return patterns
		}
	}
	return append(patterns, datatypes.BugPattern{
		Name:           PatternMisinterpretation,
		Severity:       7,
		Confidence:     0.60,
		Description:    fmt.Sprintf("%d distinct bug patterns suggest the prompt was fundamentally misunderstood", len(patterns)),
		FixSuggestion:  "Re-read the prompt and restructure the solution around its actual intent",
		DetectionStage: StageLinguistic,
	})
}

func found(findings map[string]datatypes.Finding, key string) (datatypes.Finding, bool) {
	f, ok := findings[key]
	if !ok || !f.Found {
		return datatypes.Finding{}, false
	}
	return f, true
}

func location(f datatypes.Finding) string {
	if len(f.Locations) == 0 {
		return ""
	}
	return fmt.Sprintf("line %d", f.Locations[0].Line)
}

func describeVerdict(v datatypes.AggregatedVerdict, fallback string) string {
	if len(v.Findings) == 0 {
		return fallback
	}
	shown := v.Findings
	extra := 0
	if len(shown) > 3 {
		extra = len(shown) - 3
		shown = shown[:3]
	}
	desc := strings.Join(shown, "; ")
	if extra > 0 {
		desc += fmt.Sprintf(" (+%d more)", extra)
	}
	return desc
}

func bumpSeverity(p datatypes.BugPattern, contributing ...datatypes.Finding) datatypes.BugPattern {
	for _, f := range contributing {
		if f.Severity > p.Severity {
			p.Severity = f.Severity
		}
	}
	return p
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
