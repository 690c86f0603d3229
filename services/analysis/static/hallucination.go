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
	"sort"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// camelCaseCall matches CamelCase call sites, the classic shape of a
// hallucinated class or constructor.
var camelCaseCall = regexp.MustCompile(`\b([A-Z][a-zA-Z0-9]*)\s*\(`)

// HallucinationDetector finds references to names the snippet never
// defines: the used-identifier set minus defined identifiers, builtins
// and common module names. Parameters, loop and comprehension targets,
// and imports count as defined.
type HallucinationDetector struct{}

func (d *HallucinationDetector) Name() string { return "HallucinationDetector" }
func (d *HallucinationDetector) Key() string  { return datatypes.KeyHallucinatedObjects }

func (d *HallucinationDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	if in.Module == nil {
		return finding
	}

	defined := in.Module.DefinedNames()
	classes := in.Module.ClassNames()
	used := in.Module.UsedNames()

	known := func(name string) bool {
		if _, ok := defined[name]; ok {
			return true
		}
		if _, ok := pythonBuiltins[name]; ok {
			return true
		}
		_, ok := commonModules[name]
		return ok
	}

	seen := make(map[string]struct{})
	var names []string
	var locations []datatypes.Location
	record := func(name string, loc datatypes.Location) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
		locations = append(locations, loc)
	}

	for name, loc := range used {
		if known(name) {
			continue
		}
		record(name, datatypes.Location{Line: loc.Line, Offset: loc.Column, Text: loc.Text})
	}

	// CamelCase call sites whose callee is not a class defined here.
	for lineNo, lineText := range in.Lines {
		for _, match := range camelCaseCall.FindAllStringSubmatch(lineText, -1) {
			name := match[1]
			if _, ok := classes[name]; ok {
				continue
			}
			if known(name) {
				continue
			}
			if strings.Contains(lineText, "class "+name) {
				continue
			}
			record(name, datatypes.Location{Line: lineNo + 1, Text: strings.TrimSpace(lineText)})
		}
	}

	if len(names) == 0 {
		return finding
	}

	sort.Slice(locations, func(i, j int) bool { return locations[i].Line < locations[j].Line })
	sort.Strings(names)

	finding.Found = true
	finding.Confidence = 0.85
	finding.Severity = 8
	finding.Locations = locations
	finding.Message = fmt.Sprintf("references to undefined names: %s", strings.Join(names, ", "))
	finding.Evidence = map[string]any{"names": names}
	return finding
}

var _ Detector = (*HallucinationDetector)(nil)
