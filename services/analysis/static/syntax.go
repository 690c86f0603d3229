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

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// SyntaxDetector reports the first parse failure in the snippet. The
// parser has already attempted partial recovery, so the rest of the
// batch still analyzes whatever parsed cleanly.
type SyntaxDetector struct{}

func (d *SyntaxDetector) Name() string { return "SyntaxDetector" }
func (d *SyntaxDetector) Key() string  { return datatypes.KeySyntaxError }

func (d *SyntaxDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	finding := datatypes.Finding{Kind: d.Key()}
	if in.Module == nil {
		finding.Found = true
		finding.Confidence = 1.0
		finding.Severity = 9
		finding.Message = "source could not be parsed"
		return finding
	}
	serr := in.Module.SyntaxError()
	if serr == nil {
		return finding
	}
	finding.Found = true
	finding.Confidence = 1.0
	finding.Severity = 9
	finding.Message = fmt.Sprintf("syntax error at line %d: %s", serr.Line, serr.Text)
	finding.Locations = []datatypes.Location{{
		Line:   serr.Line,
		Offset: serr.Offset,
		Text:   serr.Text,
	}}
	finding.Evidence = map[string]any{
		"partial_analysis": in.Module.Partial(),
	}
	return finding
}

var _ Detector = (*SyntaxDetector)(nil)
