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
	// `discount - price` where the sane order is price - discount.
	reversedOperands = regexp.MustCompile(`\b(discount|rate|percent)\w*\s*-\s*(\w+)`)

	// "text" + price, price + "text": string concatenated with a
	// numeric-sounding name.
	strNumConcat = regexp.MustCompile(
		`(["'][^"']*["']\s*\+\s*\w*(rate|price|count|value|num)\w*)|(\w*(rate|price|count|value|num)\w*\s*\+\s*["'][^"']*["'])`)
)

// SillyMistakeDetector finds mechanical slips no attentive human makes:
// reversed subtraction operands, string+number concatenation, and
// if/else branches with structurally identical bodies.
type SillyMistakeDetector struct{}

func (d *SillyMistakeDetector) Name() string { return "SillyMistakeDetector" }
func (d *SillyMistakeDetector) Key() string  { return datatypes.KeySillyMistakes }

func (d *SillyMistakeDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	var issues []string
	var locations []datatypes.Location
	add := func(line int, text, issue string) {
		issues = append(issues, issue)
		locations = append(locations, datatypes.Location{Line: line, Text: strings.TrimSpace(text)})
	}

	for i, lineText := range in.Lines {
		lineNo := i + 1
		if strings.HasPrefix(strings.TrimSpace(lineText), "#") {
			continue
		}
		if m := reversedOperands.FindStringSubmatch(lineText); m != nil {
			add(lineNo, lineText, fmt.Sprintf("line %d: suspicious operand order %q, expected the %s on the right",
				lineNo, strings.TrimSpace(m[0]), m[1]))
		}
		if strNumConcat.MatchString(lineText) {
			add(lineNo, lineText, fmt.Sprintf("line %d: string concatenated with a numeric value", lineNo))
		}
	}

	if in.Module != nil {
		for _, branch := range in.Module.Branches() {
			if branch.HasElif || branch.Alternative == "" {
				continue
			}
			if branch.Consequence == branch.Alternative {
				add(branch.Line, "", fmt.Sprintf("line %d: if and else branches are identical", branch.Line))
			}
		}
	}

	if len(issues) == 0 {
		return finding
	}
	finding.Found = true
	finding.Confidence = 0.80
	finding.Severity = 6
	finding.Locations = locations
	finding.Message = summarize("silly mistakes", issues)
	finding.Evidence = map[string]any{"issues": issues}
	return finding
}

var _ Detector = (*SillyMistakeDetector)(nil)
