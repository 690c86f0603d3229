// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cascade

import (
	"fmt"
	"strings"

	"github.com/rony31416/codeguard-test/services/analysis/ast"
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

const shortPromptWords = 15

// structuralLayer re-checks each question against the real tree rather
// than substrings. A nil module (unparsable snippet) yields an empty
// result; the rule and semantic layers still speak.
func structuralLayer(question, prompt string, mod *ast.Module) datatypes.LayerResult {
	lr := datatypes.LayerResult{Layer: datatypes.LayerStructural}
	if mod == nil {
		return lr
	}

	switch question {
	case datatypes.QuestionNPC:
		structuralNPC(&lr, prompt, mod)
	case datatypes.QuestionPromptBias:
		structuralPromptBias(&lr, prompt, mod)
	case datatypes.QuestionMissingFeature:
		structuralMissingFeature(&lr, prompt, mod)
	case datatypes.QuestionMisinterpretation:
		structuralMisinterpretation(&lr, prompt, mod)
	}

	finalize(&lr)
	return lr
}

func structuralNPC(lr *datatypes.LayerResult, prompt string, mod *ast.Module) {
	for _, call := range mod.Calls() {
		switch {
		case call.Callee == "print" && !mentionsAny(prompt, "print", "output", "display", "show"):
			issue := datatypes.Finding{
				Kind:       datatypes.QuestionNPC,
				Found:      true,
				Confidence: 0.9,
				Severity:   5,
				Locations:  []datatypes.Location{{Line: call.Line}},
				Message:    fmt.Sprintf("print call at line %d not requested in prompt", call.Line),
			}
			lr.Issues = append(lr.Issues, issue)
		case isLoggingCallee(call.Callee) && !mentionsAny(prompt, "log", "logging"):
			issue := datatypes.Finding{
				Kind:       datatypes.QuestionNPC,
				Found:      true,
				Confidence: 0.9,
				Severity:   5,
				Locations:  []datatypes.Location{{Line: call.Line}},
				Message:    fmt.Sprintf("logging call at line %d not requested in prompt", call.Line),
			}
			lr.Issues = append(lr.Issues, issue)
		}
	}
}

func isLoggingCallee(callee string) bool {
	return strings.HasPrefix(callee, "logging.") || strings.HasPrefix(callee, "logger.")
}

func structuralPromptBias(lr *datatypes.LayerResult, prompt string, mod *ast.Module) {
	nums := promptNumbers(prompt)
	for _, lit := range mod.NumericLiterals() {
		for _, n := range nums {
			if lit.Text == n {
				addLocatedIssue(lr, datatypes.QuestionPromptBias, 0.9, 6, lit.Line,
					fmt.Sprintf("prompt value %s appears as a literal at line %d", n, lit.Line))
			}
		}
	}
	for _, lit := range mod.StringLiterals() {
		if exampleWord.MatchString(`"`+lit.Text+`"`) || properName.MatchString(`"`+lit.Text+`"`) {
			addLocatedIssue(lr, datatypes.QuestionPromptBias, 0.9, 6, lit.Line,
				fmt.Sprintf("example-looking string literal %q at line %d", lit.Text, lit.Line))
		}
	}
}

// structuralMissingFeature stays silent on short prompts; under 15
// words there is no reliable feature list to verify against.
func structuralMissingFeature(lr *datatypes.LayerResult, prompt string, mod *ast.Module) {
	if len(promptWords(prompt)) < shortPromptWords {
		return
	}
	verbs := promptActionVerbs(prompt)
	if len(verbs) < 2 {
		return
	}

	implemented := make(map[string]bool)
	for _, fn := range mod.Functions() {
		name := strings.ToLower(fn.Name)
		for _, verb := range verbs {
			if strings.Contains(name, verb) {
				implemented[verb] = true
			}
		}
	}
	for _, call := range mod.Calls() {
		callee := strings.ToLower(call.Callee)
		for _, verb := range verbs {
			if strings.Contains(callee, verb) {
				implemented[verb] = true
			}
		}
	}

	for _, verb := range verbs {
		if implemented[verb] {
			continue
		}
		addLocatedIssue(lr, datatypes.QuestionMissingFeature, 0.75, 6, 0,
			fmt.Sprintf("no function or call implements requested feature %q", verb))
	}
}

func structuralMisinterpretation(lr *datatypes.LayerResult, prompt string, mod *ast.Module) {
	returns := mod.Returns()

	if returnsList.MatchString(prompt) && !hasReturnKind(returns, ast.ReturnList) {
		addLocatedIssue(lr, datatypes.QuestionMisinterpretation, 0.8, 7, 0,
			"prompt asks for a list return but no return statement produces a list")
	}
	if returnsDict.MatchString(prompt) && !hasReturnKind(returns, ast.ReturnDict) {
		addLocatedIssue(lr, datatypes.QuestionMisinterpretation, 0.8, 7, 0,
			"prompt asks for a dict return but no return statement produces a dict")
	}

	if wantsCompute(prompt) && len(returns) == 0 {
		for _, call := range mod.Calls() {
			if call.Callee == "print" {
				addLocatedIssue(lr, datatypes.QuestionMisinterpretation, 0.85, 7, call.Line,
					fmt.Sprintf("result is printed at line %d instead of returned", call.Line))
				break
			}
		}
	}
}

func hasReturnKind(returns []ast.ReturnInfo, kind ast.ReturnKind) bool {
	for _, r := range returns {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

func addLocatedIssue(lr *datatypes.LayerResult, kind string, conf float64, sev, line int, msg string) {
	issue := datatypes.Finding{
		Kind:       kind,
		Found:      true,
		Confidence: conf,
		Severity:   sev,
		Message:    msg,
	}
	if line > 0 {
		issue.Locations = []datatypes.Location{{Line: line}}
	}
	lr.Issues = append(lr.Issues, issue)
}
