// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package analysis

import (
	"time"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

// Run is the internal record of one analysis. Mutated only by the
// Service under its lock; handlers see Snapshot copies.
type Run struct {
	ID     string
	State  datatypes.RunState
	Prompt string
	Code   string

	Patterns        []datatypes.BugPattern
	ExecutionLogs   []string
	OverallSeverity int
	HasBugs         bool
	Summary         string
	Linguistic      map[string]datatypes.AggregatedVerdict

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is the immutable view of a run handed to callers.
type Snapshot struct {
	ID              string                                 `json:"analysis_id"`
	Status          string                                 `json:"status"`
	State           datatypes.RunState                     `json:"state"`
	Patterns        []datatypes.BugPattern                 `json:"bug_patterns"`
	ExecutionLogs   []string                               `json:"execution_logs"`
	OverallSeverity int                                    `json:"overall_severity"`
	HasBugs         bool                                   `json:"has_bugs"`
	Summary         string                                 `json:"summary"`
	Linguistic      map[string]datatypes.AggregatedVerdict `json:"linguistic_analysis,omitempty"`
}

func (r *Run) snapshot(pending bool) Snapshot {
	status := "complete"
	if pending {
		status = "processing"
	}
	snap := Snapshot{
		ID:              r.ID,
		Status:          status,
		State:           r.State,
		Patterns:        append([]datatypes.BugPattern(nil), r.Patterns...),
		ExecutionLogs:   append([]string(nil), r.ExecutionLogs...),
		OverallSeverity: r.OverallSeverity,
		HasBugs:         r.HasBugs,
		Summary:         r.Summary,
	}
	if r.Linguistic != nil {
		snap.Linguistic = make(map[string]datatypes.AggregatedVerdict, len(r.Linguistic))
		for k, v := range r.Linguistic {
			snap.Linguistic[k] = v
		}
	}
	return snap
}
