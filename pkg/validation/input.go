// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for values that reach
// sensitive sinks: path parameters used as map keys, and snippets that
// get written to disk for sandbox execution.
package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// analysisIDPattern matches the UUID form the service mints for runs.
var analysisIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateAnalysisID rejects path parameters that cannot be a run id.
//
// Example:
//
//	if err := validation.ValidateAnalysisID(id); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("analysis id cannot be empty")
	}
	if !analysisIDPattern.MatchString(id) {
		return fmt.Errorf("invalid analysis id format: %q", id)
	}
	return nil
}

// ValidateSnippet checks a code snippet before it is accepted for
// analysis and eventually written into the sandbox mount.
func ValidateSnippet(code string, maxBytes int) error {
	if code == "" {
		return fmt.Errorf("code cannot be empty")
	}
	if len(code) > maxBytes {
		return fmt.Errorf("code is %d bytes, limit is %d", len(code), maxBytes)
	}
	if !utf8.ValidString(code) {
		return fmt.Errorf("code must be valid UTF-8")
	}
	return nil
}
