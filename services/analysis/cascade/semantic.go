// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cascade

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
	"github.com/rony31416/codeguard-test/services/llm"
)

// semanticResponse is the JSON block the reasoning model must return.
type semanticResponse struct {
	Found      bool     `json:"found"`
	Confidence float64  `json:"confidence"`
	Severity   int      `json:"severity"`
	Issues     []string `json:"issues"`
	Reasoning  string   `json:"reasoning"`
}

var questionInstructions = map[string]string{
	datatypes.QuestionNPC: "Does the code add behavior the prompt never asked for " +
		"(debug output, logging, access checks, arbitrary limits)?",
	datatypes.QuestionPromptBias: "Does the code hardcode example values from the prompt " +
		"(names, numbers, sample strings) instead of generalizing?",
	datatypes.QuestionMissingFeature: "Does the code omit a feature the prompt explicitly requested?",
	datatypes.QuestionMisinterpretation: "Does the code fundamentally misunderstand what the prompt " +
		"asked for (wrong output form, wrong operation, printing instead of returning)?",
}

// buildSemanticPrompt assembles the reasoning request: question, user
// prompt, code, and the lower layers' evidence as context.
func buildSemanticPrompt(question, prompt, code string, evidence []datatypes.LayerResult) string {
	var b strings.Builder
	b.WriteString("Analyze generated code against the prompt that produced it.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", questionInstructions[question])
	fmt.Fprintf(&b, "Prompt:\n%s\n\n", prompt)
	fmt.Fprintf(&b, "Code:\n```python\n%s\n```\n\n", code)

	for _, lr := range evidence {
		if len(lr.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&b, "Evidence from %s analysis:\n", lr.Layer)
		for _, issue := range lr.Issues {
			fmt.Fprintf(&b, "- %s (confidence %.2f)\n", issue.Message, issue.Confidence)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with exactly one JSON object:
{"found": bool, "confidence": 0.0-1.0, "severity": 0-10, "issues": ["..."], "reasoning": "..."}
`)
	return b.String()
}

// semanticLayer asks the reasoning service to answer the question given
// the lower layers' evidence. Returns an error when the provider chain
// fails or the response carries no parsable JSON; the caller decides
// between skipping the layer and the fallback verdict.
func (a *Analyzer) semanticLayer(ctx context.Context, question, prompt, code string, evidence []datatypes.LayerResult) (datatypes.LayerResult, error) {
	lr := datatypes.LayerResult{Layer: datatypes.LayerSemantic}
	if a.client == nil {
		return lr, fmt.Errorf("cascade: no reasoning client configured")
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		return lr, fmt.Errorf("cascade: acquire semantic slot: %w", err)
	}
	defer a.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, a.semanticTimeout)
	defer cancel()

	raw, err := a.client.Generate(callCtx, buildSemanticPrompt(question, prompt, code, evidence), llm.GenerationParams{
		Temperature: llm.Temp(0.1),
		MaxTokens:   llm.Tokens(512),
	})
	if err != nil {
		return lr, fmt.Errorf("cascade: reasoning call for %s: %w", question, err)
	}

	block, ok := extractJSON(raw)
	if !ok {
		return lr, fmt.Errorf("cascade: no JSON block in reasoning response for %s", question)
	}
	var resp semanticResponse
	if err := json.Unmarshal([]byte(block), &resp); err != nil {
		return lr, fmt.Errorf("cascade: decode reasoning response for %s: %w", question, err)
	}

	lr.Found = resp.Found
	lr.Confidence = clamp01(resp.Confidence)
	lr.Severity = clampSeverity(resp.Severity)
	lr.Evidence = map[string]any{"reasoning": resp.Reasoning}
	for _, msg := range resp.Issues {
		lr.Issues = append(lr.Issues, datatypes.Finding{
			Kind:       question,
			Found:      true,
			Confidence: lr.Confidence,
			Severity:   lr.Severity,
			Message:    msg,
		})
	}
	if lr.Found && len(lr.Issues) == 0 {
		lr.Issues = append(lr.Issues, datatypes.Finding{
			Kind:       question,
			Found:      true,
			Confidence: lr.Confidence,
			Severity:   lr.Severity,
			Message:    resp.Reasoning,
		})
	}
	return lr, nil
}

// extractJSON pulls the first JSON block out of a model response,
// tolerating markdown fences. Falls back to the first-to-last brace
// substring when no fence is present.
func extractJSON(response string) (string, bool) {
	markers := []string{"```json\n", "```json\r\n", "```\n", "```\r\n"}
	for _, marker := range markers {
		startIdx := strings.Index(response, marker)
		if startIdx == -1 {
			continue
		}
		content := response[startIdx+len(marker):]
		endIdx := strings.Index(content, "```")
		if endIdx == -1 {
			continue
		}
		candidate := strings.TrimSpace(content[:endIdx])
		if strings.HasPrefix(candidate, "{") {
			return candidate, true
		}
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return response[start : end+1], true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampSeverity(s int) int {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
