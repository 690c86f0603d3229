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
	danglingAssignment = regexp.MustCompile(`^\s*\w+\s*=\s*$`)
	todoMarker         = regexp.MustCompile(`\b(TODO|FIXME)\b`)
	truncationComment  = regexp.MustCompile(`(?i)#.*\b(missing|stopped|incomplete)\b`)
)

// IncompleteDetector finds the signatures of generation that stopped
// mid-thought: dangling assignments, empty function bodies, ellipsis
// and TODO markers, and while loops whose guard variables are never all
// updated.
type IncompleteDetector struct{}

func (d *IncompleteDetector) Name() string { return "IncompleteDetector" }
func (d *IncompleteDetector) Key() string  { return datatypes.KeyIncompleteGeneration }

func (d *IncompleteDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	var issues []string
	var locations []datatypes.Location
	add := func(line int, text, issue string) {
		issues = append(issues, issue)
		locations = append(locations, datatypes.Location{Line: line, Text: strings.TrimSpace(text)})
	}

	for i, lineText := range in.Lines {
		lineNo := i + 1
		switch {
		case danglingAssignment.MatchString(lineText):
			add(lineNo, lineText, fmt.Sprintf("line %d: assignment with no value", lineNo))
		case strings.TrimSpace(lineText) == "...":
			add(lineNo, lineText, fmt.Sprintf("line %d: ellipsis placeholder", lineNo))
		case todoMarker.MatchString(lineText):
			add(lineNo, lineText, fmt.Sprintf("line %d: TODO/FIXME marker", lineNo))
		case truncationComment.MatchString(lineText):
			add(lineNo, lineText, fmt.Sprintf("line %d: comment admits missing logic", lineNo))
		}
	}

	if in.Module != nil {
		for _, fn := range in.Module.Functions() {
			if fn.OnlyPass {
				add(fn.StartLine, "", fmt.Sprintf("function %q has an empty body", fn.Name))
			}
		}
		for _, loop := range in.Module.WhileLoops() {
			if stuckLoop(loop.GuardVars, loop.Modified) {
				add(loop.Line, "",
					fmt.Sprintf("line %d: while loop compares %d variables but updates only %q",
						loop.Line, len(loop.GuardVars), loop.Modified[0]))
			}
		}
	}

	if len(issues) == 0 {
		return finding
	}
	finding.Found = true
	finding.Confidence = 0.90
	finding.Severity = 7
	finding.Locations = locations
	finding.Message = summarize("incomplete generation", issues)
	finding.Evidence = map[string]any{"issues": issues}
	return finding
}

// stuckLoop reports a guard comparing two or more variables while the
// body modifies exactly one of them.
func stuckLoop(guards, modified []string) bool {
	if len(guards) < 2 || len(modified) != 1 {
		return false
	}
	for _, g := range guards {
		if g == modified[0] {
			return true
		}
	}
	return false
}

// summarize lists the first three issues and counts the rest.
func summarize(what string, issues []string) string {
	shown := issues
	var more string
	if len(shown) > 3 {
		more = fmt.Sprintf(" (+%d more)", len(shown)-3)
		shown = shown[:3]
	}
	return fmt.Sprintf("%s: %s%s", what, strings.Join(shown, "; "), more)
}

var _ Detector = (*IncompleteDetector)(nil)
