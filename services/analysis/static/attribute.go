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

// WrongAttributeDetector flags attribute access on names whose
// statically inferred type is a mapping. Dict values are reached by
// indexing, not attributes; generated code routinely confuses the two.
// Only names the inference pass actually resolved are flagged, so an
// unresolved object never produces a false positive.
type WrongAttributeDetector struct{}

func (d *WrongAttributeDetector) Name() string { return "WrongAttributeDetector" }
func (d *WrongAttributeDetector) Key() string  { return datatypes.KeyWrongAttribute }

func (d *WrongAttributeDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	if in.Module == nil {
		return finding
	}

	inference := in.Module.Infer()
	var issues []string
	var locations []datatypes.Location

	for _, acc := range in.Module.AttributeAccesses() {
		if !acc.ObjectName {
			continue
		}
		if acc.Object == "self" || acc.Object == "cls" {
			continue
		}
		if _, ok := commonModules[acc.Object]; ok {
			continue
		}
		if _, ok := mappingMethods[acc.Attr]; ok {
			continue
		}
		kind, ok := inference.Kind(acc.Object)
		if !ok || kind != ast.ValueMapping {
			continue
		}
		issues = append(issues, fmt.Sprintf("line %d: %s.%s accesses an attribute on a dict, use %s[%q]",
			acc.Line, acc.Object, acc.Attr, acc.Object, acc.Attr))
		locations = append(locations, datatypes.Location{Line: acc.Line})
	}

	if len(issues) == 0 {
		return finding
	}
	finding.Found = true
	finding.Confidence = 0.75
	finding.Severity = 7
	finding.Locations = locations
	finding.Message = summarize("wrong attribute access", issues)
	finding.Evidence = map[string]any{"issues": issues}
	return finding
}

var _ Detector = (*WrongAttributeDetector)(nil)

// WrongInputTypeDetector flags string literals passed to functions
// that only make sense with numeric arguments.
type WrongInputTypeDetector struct{}

func (d *WrongInputTypeDetector) Name() string { return "WrongInputTypeDetector" }
func (d *WrongInputTypeDetector) Key() string  { return datatypes.KeyWrongInputType }

func (d *WrongInputTypeDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	if in.Module == nil {
		return finding
	}

	var issues []string
	var locations []datatypes.Location
	for _, call := range in.Module.Calls() {
		callee := call.Callee
		if idx := strings.LastIndex(callee, "."); idx >= 0 {
			callee = callee[idx+1:]
		}
		if _, ok := numericFunctions[callee]; !ok {
			continue
		}
		for _, arg := range call.Args {
			if arg.Kind != ast.ArgString {
				continue
			}
			issues = append(issues, fmt.Sprintf("line %d: %s() called with string literal %s",
				call.Line, callee, arg.Text))
			locations = append(locations, datatypes.Location{Line: call.Line})
			break
		}
	}

	if len(issues) == 0 {
		return finding
	}
	finding.Found = true
	finding.Confidence = 0.80
	finding.Severity = 6
	finding.Locations = locations
	finding.Message = summarize("wrong input type", issues)
	finding.Evidence = map[string]any{"issues": issues}
	return finding
}

var _ Detector = (*WrongInputTypeDetector)(nil)
