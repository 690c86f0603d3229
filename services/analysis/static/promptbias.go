// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package static

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

var (
	exampleComparison = regexp.MustCompile(`(?i)(==|!=)\s*["'][^"']*(demo|example|sample|test)[^"']*["']`)
	exampleName       = regexp.MustCompile(`==\s*["']Example_`)

	roleCheck      = regexp.MustCompile(`==\s*["'](admin|root|superuser)["']`)
	thresholdRaise = regexp.MustCompile(`if\s+.*>\s*(100000|10000|1000)\b`)
)

// PromptBiasDetector flags comparisons hardcoded against
// example-looking literals: the model baked the prompt's illustration
// into the logic instead of generalizing.
type PromptBiasDetector struct{}

func (d *PromptBiasDetector) Name() string { return "PromptBiasDetector" }
func (d *PromptBiasDetector) Key() string  { return datatypes.KeyPromptBiased }

func (d *PromptBiasDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	var issues []string
	var locations []datatypes.Location

	for i, lineText := range in.Lines {
		lineNo := i + 1
		trimmed := strings.TrimSpace(lineText)
		// Demo blocks legitimately hardcode examples.
		if strings.Contains(trimmed, "__main__") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if exampleComparison.MatchString(lineText) || exampleName.MatchString(lineText) {
			issues = append(issues, fmt.Sprintf("line %d: comparison against example-looking literal", lineNo))
			locations = append(locations, datatypes.Location{Line: lineNo, Text: trimmed})
		}
	}

	if len(issues) == 0 {
		return finding
	}
	finding.Found = true
	finding.Confidence = 0.75
	finding.Severity = 6
	finding.Locations = locations
	finding.Message = summarize("prompt-biased logic", issues)
	finding.Evidence = map[string]any{"issues": issues}
	return finding
}

var _ Detector = (*PromptBiasDetector)(nil)

// NPCDetector flags non-prompted considerations: hardcoded role gates
// and magic-threshold guards that raise, when the prompt never asked
// for them.
type NPCDetector struct{}

func (d *NPCDetector) Name() string { return "NPCDetector" }
func (d *NPCDetector) Key() string  { return datatypes.KeyNPC }

func (d *NPCDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	prompt := strings.ToLower(in.Prompt)
	var issues []string
	var locations []datatypes.Location

	raiseNearby := func(from int) bool {
		for j := from; j < from+4 && j < len(in.Lines); j++ {
			if strings.Contains(in.Lines[j], "raise") {
				return true
			}
		}
		return false
	}

	for i, lineText := range in.Lines {
		lineNo := i + 1
		if m := roleCheck.FindStringSubmatch(lineText); m != nil && raiseNearby(i) {
			role := m[1]
			if !strings.Contains(prompt, role) {
				issues = append(issues, fmt.Sprintf("line %d: hardcoded %q role check not requested in prompt", lineNo, role))
				locations = append(locations, datatypes.Location{Line: lineNo, Text: strings.TrimSpace(lineText)})
			}
		}
		if m := thresholdRaise.FindStringSubmatch(lineText); m != nil && raiseNearby(i) {
			if !strings.Contains(prompt, m[1]) && !strings.Contains(prompt, "limit") {
				issues = append(issues, fmt.Sprintf("line %d: hardcoded threshold %s guard not requested in prompt", lineNo, m[1]))
				locations = append(locations, datatypes.Location{Line: lineNo, Text: strings.TrimSpace(lineText)})
			}
		}
	}

	if len(issues) == 0 {
		return finding
	}
	finding.Found = true
	finding.Confidence = 0.70
	finding.Severity = 5
	finding.Locations = locations
	finding.Message = summarize("non-prompted considerations", issues)
	finding.Evidence = map[string]any{"issues": issues}
	return finding
}

var _ Detector = (*NPCDetector)(nil)
