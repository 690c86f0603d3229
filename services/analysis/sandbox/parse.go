// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sandbox

import (
	"encoding/json"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// wrapperStatus is the single JSON line the wrapper prints.
type wrapperStatus struct {
	Success   bool   `json:"success"`
	ErrorType string `json:"error_type"`
	Message   string `json:"message"`
}

// parseWrapperOutput finds the wrapper's status line in the captured
// output. The runtime may interleave warnings and partial prints, so
// the scan runs from the last line upward and returns the first line
// that parses as a JSON object. ok is false when no line parses.
func parseWrapperOutput(output string) (wrapperStatus, bool) {
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var status wrapperStatus
		if err := json.Unmarshal([]byte(line), &status); err == nil {
			return status, true
		}
	}
	return wrapperStatus{}, false
}

// ClassifyRuntime maps a runtime failure onto detector result keys so
// the classifier treats dynamic evidence like any other finding.
func ClassifyRuntime(outcome datatypes.SandboxOutcome) map[string]datatypes.Finding {
	findings := make(map[string]datatypes.Finding)
	if outcome.Success || outcome.Skipped || outcome.ErrorType == "" {
		return findings
	}

	key := datatypes.KeyOtherError
	switch outcome.ErrorType {
	case "ZeroDivisionError":
		key = datatypes.KeyMissingCornerCase
	case "AttributeError":
		key = datatypes.KeyWrongAttribute
	case "TypeError":
		key = datatypes.KeyWrongInputType
	case "NameError":
		key = datatypes.KeyNameError
	}

	findings[key] = datatypes.Finding{
		Kind:       key,
		Found:      true,
		Confidence: runtimeConfidence(key),
		Message:    outcome.ErrorType + ": " + outcome.Message,
		Evidence: map[string]any{
			"error_type": outcome.ErrorType,
			"tier":       outcome.Tier,
		},
	}
	return findings
}

// runtimeConfidence is higher than the static equivalents; the error
// actually happened.
func runtimeConfidence(key string) float64 {
	switch key {
	case datatypes.KeyNameError:
		return 0.95
	case datatypes.KeyWrongAttribute:
		return 0.90
	case datatypes.KeyWrongInputType:
		return 0.85
	case datatypes.KeyMissingCornerCase:
		return 0.90
	default:
		return 0.70
	}
}
