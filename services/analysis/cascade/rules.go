// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cascade

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

var (
	debugPrint  = regexp.MustCompile(`(?m)^\s*print\s*\(`)
	loggingCall = regexp.MustCompile(`\b(?:logging\.(?:debug|info|warning|error|critical)|logger\.\w+)\s*\(`)

	properName  = regexp.MustCompile(`["'][A-Z][a-z]+(?: [A-Z][a-z]+)+["']`)
	exampleWord = regexp.MustCompile(`(?i)["'][^"'\n]*(?:example|demo|sample|placeholder)[^"'\n]*["']`)

	returnsList = regexp.MustCompile(`(?i)\breturns?\s+(?:a\s+|the\s+)?list\b`)
	returnsDict = regexp.MustCompile(`(?i)\breturns?\s+(?:a\s+|the\s+)?(?:dict|dictionary|map)\b`)
)

// ruleLayer answers one question with regex and keyword matching over
// the prompt and comment-stripped code. Cheap and conservative; its
// output is evidence for the verdict protocol and an independent vote
// for the aggregation protocol.
func ruleLayer(question, prompt, code string) datatypes.LayerResult {
	lr := datatypes.LayerResult{Layer: datatypes.LayerRule}
	stripped := stripComments(code)

	switch question {
	case datatypes.QuestionNPC:
		ruleNPC(&lr, prompt, stripped)
	case datatypes.QuestionPromptBias:
		rulePromptBias(&lr, prompt, stripped)
	case datatypes.QuestionMissingFeature:
		ruleMissingFeature(&lr, prompt, stripped)
	case datatypes.QuestionMisinterpretation:
		ruleMisinterpretation(&lr, prompt, stripped)
	}

	finalize(&lr)
	return lr
}

func ruleNPC(lr *datatypes.LayerResult, prompt, code string) {
	if debugPrint.MatchString(code) && !mentionsAny(prompt, "print", "output", "display", "show") {
		addIssue(lr, datatypes.QuestionNPC, 0.95, 5, "debug print statements not requested in prompt")
	}
	if loggingCall.MatchString(code) && !mentionsAny(prompt, "log", "logging") {
		addIssue(lr, datatypes.QuestionNPC, 0.95, 5, "logging calls not requested in prompt")
	}
}

func rulePromptBias(lr *datatypes.LayerResult, prompt, code string) {
	for _, n := range promptNumbers(prompt) {
		if strings.Contains(code, n) {
			addIssue(lr, datatypes.QuestionPromptBias, 0.9, 6,
				fmt.Sprintf("prompt value %s hardcoded in code", n))
		}
	}
	if m := properName.FindString(code); m != "" {
		addIssue(lr, datatypes.QuestionPromptBias, 0.85, 6,
			fmt.Sprintf("hardcoded proper name %s looks like a prompt example", m))
	}
	if m := exampleWord.FindString(code); m != "" {
		addIssue(lr, datatypes.QuestionPromptBias, 0.8, 6,
			fmt.Sprintf("example-looking literal %s in logic", m))
	}
}

// ruleMissingFeature only fires on prompts that enumerate features
// explicitly; a vague one-verb prompt gives no basis for a miss.
func ruleMissingFeature(lr *datatypes.LayerResult, prompt, code string) {
	verbs := promptActionVerbs(prompt)
	if len(verbs) < 2 {
		return
	}
	lower := strings.ToLower(code)
	for _, verb := range verbs {
		defPattern := regexp.MustCompile(`def\s+\w*` + regexp.QuoteMeta(verb) + `\w*\s*\(`)
		if defPattern.MatchString(lower) || strings.Contains(lower, verb) {
			continue
		}
		addIssue(lr, datatypes.QuestionMissingFeature, 0.7, 6,
			fmt.Sprintf("requested feature %q has no matching implementation", verb))
	}
}

func ruleMisinterpretation(lr *datatypes.LayerResult, prompt, code string) {
	if returnsList.MatchString(prompt) && !strings.Contains(code, "return [") && !strings.Contains(code, "return list(") {
		addIssue(lr, datatypes.QuestionMisinterpretation, 0.6, 7,
			"prompt asks for a list return but code never returns a list")
	}
	if returnsDict.MatchString(prompt) && !strings.Contains(code, "return {") && !strings.Contains(code, "return dict(") {
		addIssue(lr, datatypes.QuestionMisinterpretation, 0.6, 7,
			"prompt asks for a dict return but code never returns a dict")
	}
	if wantsCompute(prompt) && debugPrint.MatchString(code) && !strings.Contains(code, "return") {
		addIssue(lr, datatypes.QuestionMisinterpretation, 0.8, 7,
			"code prints its result instead of returning it")
	}
}

func addIssue(lr *datatypes.LayerResult, kind string, conf float64, sev int, msg string) {
	lr.Issues = append(lr.Issues, datatypes.Finding{
		Kind:       kind,
		Found:      true,
		Confidence: conf,
		Severity:   sev,
		Message:    msg,
	})
}

// finalize rolls the per-issue evidence up into the layer's own vote.
func finalize(lr *datatypes.LayerResult) {
	for _, issue := range lr.Issues {
		lr.Found = true
		if issue.Confidence > lr.Confidence {
			lr.Confidence = issue.Confidence
		}
		if issue.Severity > lr.Severity {
			lr.Severity = issue.Severity
		}
	}
}
