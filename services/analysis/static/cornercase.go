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
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/ast"
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// cornerGuardWindow is how many lines around a division are searched
// for a zero guard.
const cornerGuardWindow = 5

// guardMarkers are the textual shapes of a divide-by-zero guard.
var guardMarkers = []string{
	"!= 0", "== 0", "!=0", "==0",
	"if not ", "if len(", "ZeroDivisionError",
}

// CornerCaseDetector flags divisions by a non-constant divisor with no
// reachable zero guard or exception handler near the division. Only
// divisions whose line derives a value from a collection size (len or
// .count) are considered; bare arithmetic like a / b is out of scope.
type CornerCaseDetector struct{}

func (d *CornerCaseDetector) Name() string { return "CornerCaseDetector" }
func (d *CornerCaseDetector) Key() string  { return datatypes.KeyMissingCornerCase }

func (d *CornerCaseDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	if in.Module == nil {
		return finding
	}

	var issues []string
	var locations []datatypes.Location
	for _, div := range in.Module.Divisions() {
		if strings.Contains(div.Text, "://") {
			continue
		}
		if !d.collectionSized(in.Lines, div) {
			continue
		}
		if d.guarded(in.Lines, div.Line) {
			continue
		}
		issues = append(issues, fmt.Sprintf("line %d: division by %q with no zero guard", div.Line, div.Divisor))
		locations = append(locations, datatypes.Location{Line: div.Line, Text: div.Text})
	}

	if len(issues) == 0 {
		return finding
	}
	finding.Found = true
	finding.Confidence = 0.65
	finding.Severity = 5
	finding.Locations = locations
	finding.Message = summarize("missing corner case", issues)
	finding.Evidence = map[string]any{"issues": issues}
	return finding
}

// collectionSized reports whether the division line touches a
// collection size (len( or .count(). The full source line is checked,
// not just the expression text, which can be a sub-span of the line.
func (d *CornerCaseDetector) collectionSized(lines []string, div ast.Division) bool {
	line := div.Text
	if div.Line >= 1 && div.Line <= len(lines) {
		line = lines[div.Line-1]
	}
	return strings.Contains(line, "len(") || strings.Contains(line, ".count(")
}

// guarded scans the window around the division for a zero check or a
// try/except pair.
func (d *CornerCaseDetector) guarded(lines []string, divLine int) bool {
	start := divLine - 1 - cornerGuardWindow
	if start < 0 {
		start = 0
	}
	end := divLine - 1 + cornerGuardWindow
	if end >= len(lines) {
		end = len(lines) - 1
	}

	var hasTry, hasExcept bool
	for i := start; i <= end; i++ {
		text := lines[i]
		for _, marker := range guardMarkers {
			if strings.Contains(text, marker) {
				return true
			}
		}
		trimmed := strings.TrimSpace(text)
		if strings.HasPrefix(trimmed, "try:") {
			hasTry = true
		}
		if strings.HasPrefix(trimmed, "except") {
			hasExcept = true
		}
	}
	return hasTry && hasExcept
}

var _ Detector = (*CornerCaseDetector)(nil)
