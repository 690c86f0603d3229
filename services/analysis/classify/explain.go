// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

import (
	"fmt"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// HasBugs reports whether the list holds anything but the sentinel.
func HasBugs(patterns []datatypes.BugPattern) bool {
	for _, p := range patterns {
		if p.Name != PatternNoBugs {
			return true
		}
	}
	return false
}

// OverallSeverity is the max severity across patterns.
func OverallSeverity(patterns []datatypes.BugPattern) int {
	severity := 0
	for _, p := range patterns {
		if p.Severity > severity {
			severity = p.Severity
		}
	}
	return severity
}

// Summarize renders the human-readable run summary.
func Summarize(patterns []datatypes.BugPattern) string {
	if !HasBugs(patterns) {
		return "No bugs detected."
	}

	real := make([]datatypes.BugPattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Name != PatternNoBugs {
			real = append(real, p)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d bug pattern(s) with %s severity.\n",
		len(real), severityLabel(OverallSeverity(real)))
	for i, p := range real {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Name)
		if p.Description != "" {
			fmt.Fprintf(&b, ": %s", p.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func severityLabel(severity int) string {
	switch {
	case severity >= 8:
		return "Critical"
	case severity >= 6:
		return "High"
	case severity >= 4:
		return "Medium"
	default:
		return "Low"
	}
}
