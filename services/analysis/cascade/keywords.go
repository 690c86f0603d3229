// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cascade

import (
	"regexp"
	"strings"
)

// actionVerbs are the feature-shaped verbs the missing-feature layers
// look for in prompts.
var actionVerbs = map[string]struct{}{
	"add": {}, "remove": {}, "delete": {}, "update": {}, "validate": {},
	"check": {}, "sort": {}, "filter": {}, "compute": {}, "calculate": {},
	"parse": {}, "convert": {}, "merge": {}, "search": {}, "find": {},
	"count": {}, "sum": {}, "create": {}, "insert": {}, "reverse": {},
	"split": {}, "format": {}, "normalize": {},
}

// computeVerbs signal the prompt expects a value back rather than
// console output.
var computeVerbs = map[string]struct{}{
	"add": {}, "sum": {}, "compute": {}, "calculate": {}, "multiply": {},
	"subtract": {}, "divide": {}, "return": {}, "count": {}, "average": {},
	"concatenate": {}, "get": {},
}

var (
	wordPattern    = regexp.MustCompile(`[a-zA-Z_]+`)
	numberPattern  = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)
	commentPattern = regexp.MustCompile(`(?m)#[^\n]*`)
)

// trivialNumbers never count as prompt-specific values; they appear in
// nearly every snippet regardless of the prompt.
var trivialNumbers = map[string]struct{}{
	"0": {}, "1": {}, "2": {},
}

// stripComments removes line comments so comment text cannot fake a
// hardcoded value.
func stripComments(code string) string {
	return commentPattern.ReplaceAllString(code, "")
}

// promptWords returns the prompt's lowercase word tokens.
func promptWords(prompt string) []string {
	return wordPattern.FindAllString(strings.ToLower(prompt), -1)
}

// promptNumbers returns the non-trivial numeric values the prompt
// mentions.
func promptNumbers(prompt string) []string {
	var nums []string
	seen := make(map[string]struct{})
	for _, n := range numberPattern.FindAllString(prompt, -1) {
		if _, trivial := trivialNumbers[n]; trivial {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		nums = append(nums, n)
	}
	return nums
}

// promptActionVerbs returns the distinct action verbs the prompt uses,
// in prompt order.
func promptActionVerbs(prompt string) []string {
	var verbs []string
	seen := make(map[string]struct{})
	for _, w := range promptWords(prompt) {
		if _, isVerb := actionVerbs[w]; !isVerb {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		verbs = append(verbs, w)
	}
	return verbs
}

// wantsCompute reports whether the prompt asks for a computed value.
func wantsCompute(prompt string) bool {
	for _, w := range promptWords(prompt) {
		if _, ok := computeVerbs[w]; ok {
			return true
		}
	}
	return false
}

// mentionsAny reports whether the prompt contains any of the words.
func mentionsAny(prompt string, words ...string) bool {
	lower := strings.ToLower(prompt)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
