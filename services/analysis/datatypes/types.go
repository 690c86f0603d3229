// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the shared value types exchanged between the
// analysis pipeline stages. Everything here is a plain data carrier;
// behavior lives in the stage packages.
package datatypes

// Location identifies a position in the analyzed snippet.
type Location struct {
	Line   int    `json:"line"`
	Offset int    `json:"offset,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Finding is the atomic observation emitted by a detector or cascade
// layer. Immutable once produced. Err carries a detector failure
// message; a failed detector still yields a usable Finding with
// Found=false.
type Finding struct {
	Kind       string         `json:"kind"`
	Found      bool           `json:"found"`
	Confidence float64        `json:"confidence"`
	Severity   int            `json:"severity,omitempty"`
	Locations  []Location     `json:"locations,omitempty"`
	Message    string         `json:"message,omitempty"`
	Evidence   map[string]any `json:"evidence,omitempty"`
	Err        string         `json:"error,omitempty"`
}

// Layer names one tier of the evidence cascade.
type Layer string

const (
	LayerRule       Layer = "rule"
	LayerStructural Layer = "structural"
	LayerSemantic   Layer = "semantic"
)

// LayerResult is the cascade's unit of exchange: one layer's answer to
// one linguistic question.
type LayerResult struct {
	Layer      Layer          `json:"layer"`
	Found      bool           `json:"found"`
	Confidence float64        `json:"confidence"`
	Severity   int            `json:"severity"`
	Issues     []Finding      `json:"issues,omitempty"`
	Evidence   map[string]any `json:"evidence,omitempty"`
}

// Consensus labels for AggregatedVerdict.
const (
	ConsensusAllAgree      = "all_agree"
	ConsensusMajorityAgree = "majority_agree"
	ConsensusSingleLayer   = "single_layer"
	ConsensusNoIssues      = "no_issues"
)

// Reliability labels for AggregatedVerdict.
const (
	ReliabilityVeryHigh = "very_high"
	ReliabilityHigh     = "high"
	ReliabilityMedium   = "medium"
	ReliabilityLow      = "low"
)

// AggregatedVerdict reconciles up to three LayerResults for one
// question. Derived data, recomputed each run.
type AggregatedVerdict struct {
	Found        bool     `json:"found"`
	Findings     []string `json:"findings"`
	Count        int      `json:"count"`
	Confidence   float64  `json:"confidence"`
	Severity     float64  `json:"severity"`
	Consensus    string   `json:"consensus"`
	PrimaryLayer Layer    `json:"primary_layer,omitempty"`
	Reliability  string   `json:"reliability"`

	// VerdictBy records who rendered a verdict-protocol decision:
	// "llm" or "fallback". Empty for the aggregation protocol.
	VerdictBy string `json:"verdict_by,omitempty"`

	// APIUsed is the reasoning provider that answered, for
	// observability. Empty when the semantic layer never ran.
	APIUsed string `json:"api_used,omitempty"`
}

// Sandbox error kinds.
const (
	SandboxErrTimeout       = "Timeout"
	SandboxErrParse         = "ParseError"
	SandboxErrContainer     = "ContainerError"
	SandboxErrImageNotFound = "ImageNotFound"
	SandboxErrExecution     = "ExecutionError"
)

// Sandbox tiers.
const (
	TierDocker     = "docker"
	TierSubprocess = "subprocess"
	TierSkipped    = "skipped"
)

// SandboxOutcome is the result of one dynamic-execution attempt.
type SandboxOutcome struct {
	Success   bool   `json:"success"`
	Skipped   bool   `json:"skipped"`
	TimedOut  bool   `json:"timed_out"`
	Tier      string `json:"tier"`
	ErrorKind string `json:"error_kind,omitempty"`
	// ErrorType is the runtime exception class reported by the
	// wrapper, e.g. "ZeroDivisionError".
	ErrorType string `json:"error_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// BugPattern is one taxonomy entry attributed to an analysis run.
type BugPattern struct {
	Name           string  `json:"name"`
	Severity       int     `json:"severity"`
	Confidence     float64 `json:"confidence"`
	Description    string  `json:"description"`
	Location       string  `json:"location,omitempty"`
	FixSuggestion  string  `json:"fix_suggestion,omitempty"`
	DetectionStage string  `json:"detection_stage"`
}

// RunState is the lifecycle state of an AnalysisRun.
type RunState string

const (
	StatePending              RunState = "pending"
	StateStaticDone           RunState = "static_done"
	StateDynamicDone          RunState = "dynamic_done"
	StateLinguisticProcessing RunState = "linguistic_processing"
	StateComplete             RunState = "complete"
	StateFailed               RunState = "failed"
)

// Static detector result keys.
const (
	KeySyntaxError          = "syntax_error"
	KeyHallucinatedObjects  = "hallucinated_objects"
	KeyIncompleteGeneration = "incomplete_generation"
	KeySillyMistakes        = "silly_mistakes"
	KeyWrongAttribute       = "wrong_attribute"
	KeyWrongInputType       = "wrong_input_type"
	KeyPromptBiased         = "prompt_biased"
	KeyNPC                  = "npc"
	KeyMissingCornerCase    = "missing_corner_case"
)

// Runtime classification keys from the dynamic stage.
const (
	KeyNameError  = "name_error"
	KeyOtherError = "other_error"
)

// Cascade question identifiers.
const (
	QuestionNPC               = "npc"
	QuestionPromptBias        = "prompt_bias"
	QuestionMissingFeature    = "missing_feature"
	QuestionMisinterpretation = "misinterpretation"
)
