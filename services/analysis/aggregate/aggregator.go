// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package aggregate reconciles the cascade's per-layer results for one
// question into a single verdict with confidence, severity, consensus
// and a reliability label.
package aggregate

import (
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// Layer weights for the severity sum. Semantic carries the most because
// it sees the other layers' evidence before answering.
var layerWeights = map[datatypes.Layer]float64{
	datatypes.LayerRule:       0.3,
	datatypes.LayerStructural: 0.3,
	datatypes.LayerSemantic:   0.4,
}

// Aggregate combines up to three layer results for the same question.
//
// Description:
//
//	Confidence is the max over layers that reported a hit. Severity is
//	the weighted sum over hitting layers only. Consensus counts how
//	many present layers agree. A single-layer hit only carries the
//	verdict when it came from the semantic layer or at confidence 0.9
//	or higher.
//
// Inputs:
//   - layers: results in any order; absent layers are simply omitted.
//
// Outputs:
//   - datatypes.AggregatedVerdict, never nil-equivalent; zero layers
//     yield a no_issues verdict.
func Aggregate(layers []datatypes.LayerResult) datatypes.AggregatedVerdict {
	verdict := datatypes.AggregatedVerdict{
		Consensus:   datatypes.ConsensusNoIssues,
		Reliability: datatypes.ReliabilityLow,
	}

	var hits []datatypes.LayerResult
	for _, lr := range layers {
		if lr.Found {
			hits = append(hits, lr)
		}
	}

	seen := make(map[string]struct{})
	for _, lr := range hits {
		if lr.Confidence > verdict.Confidence {
			verdict.Confidence = lr.Confidence
			verdict.PrimaryLayer = lr.Layer
		}
		verdict.Severity += float64(lr.Severity) * layerWeights[lr.Layer]
		for _, issue := range lr.Issues {
			if issue.Message == "" {
				continue
			}
			if _, dup := seen[issue.Message]; dup {
				continue
			}
			seen[issue.Message] = struct{}{}
			verdict.Findings = append(verdict.Findings, issue.Message)
		}
	}
	verdict.Count = len(verdict.Findings)

	switch {
	case len(layers) > 0 && len(hits) == len(layers) && len(hits) >= 2:
		verdict.Consensus = datatypes.ConsensusAllAgree
	case len(hits) >= 2:
		verdict.Consensus = datatypes.ConsensusMajorityAgree
	case len(hits) == 1:
		verdict.Consensus = datatypes.ConsensusSingleLayer
	}

	switch verdict.Consensus {
	case datatypes.ConsensusAllAgree, datatypes.ConsensusMajorityAgree:
		verdict.Found = true
	case datatypes.ConsensusSingleLayer:
		only := hits[0]
		verdict.Found = only.Layer == datatypes.LayerSemantic || only.Confidence >= 0.9
	}

	verdict.Reliability = reliability(verdict)
	return verdict
}

func reliability(v datatypes.AggregatedVerdict) string {
	switch {
	case v.Consensus == datatypes.ConsensusAllAgree && v.Confidence >= 0.95:
		return datatypes.ReliabilityVeryHigh
	case (v.Consensus == datatypes.ConsensusAllAgree || v.Consensus == datatypes.ConsensusMajorityAgree) && v.Confidence >= 0.85:
		return datatypes.ReliabilityHigh
	case v.Confidence >= 0.75:
		return datatypes.ReliabilityMedium
	default:
		return datatypes.ReliabilityLow
	}
}
