// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package classify

// PatternDefinition is one taxonomy reference entry, pure data for the
// patterns endpoint.
type PatternDefinition struct {
	Name          string `json:"name"`
	Stage         string `json:"stage"`
	SeverityRange string `json:"severity_range"`
	Description   string `json:"description"`
	Example       string `json:"example"`
}

var catalog = []PatternDefinition{
	{
		Name:          PatternSyntaxError,
		Stage:         StageStatic,
		SeverityRange: "8-10",
		Description:   "The generated code does not parse.",
		Example:       "def f(a, b)\\n    return a + b  # missing colon",
	},
	{
		Name:          PatternHallucinated,
		Stage:         StageStatic,
		SeverityRange: "7-9",
		Description:   "The code references functions, classes or variables that are never defined or imported.",
		Example:       "result = DataLoader().fetch()  # DataLoader does not exist",
	},
	{
		Name:          PatternIncomplete,
		Stage:         StageStatic,
		SeverityRange: "6-8",
		Description:   "Generation stopped partway: empty bodies, dangling assignments, TODO markers, loops that cannot progress.",
		Example:       "def process(data):\\n    pass  # TODO implement",
	},
	{
		Name:          PatternSillyMistake,
		Stage:         StageStatic,
		SeverityRange: "5-7",
		Description:   "Structural mistakes a human rarely makes: identical if/else branches, reversed operands, string+number concatenation.",
		Example:       "if ok:\\n    return 1\\nelse:\\n    return 1",
	},
	{
		Name:          PatternWrongAttribute,
		Stage:         StageDynamic,
		SeverityRange: "6-8",
		Description:   "Attribute access on a value whose type has no such attribute, typically dot access on a dict.",
		Example:       "total = cart.cost  # cart is a dict",
	},
	{
		Name:          PatternWrongInputType,
		Stage:         StageDynamic,
		SeverityRange: "5-7",
		Description:   "A literal of the wrong type is passed to a function with known numeric inputs.",
		Example:       "math.sqrt(\"16\")",
	},
	{
		Name:          PatternNPC,
		Stage:         StageLinguistic,
		SeverityRange: "4-6",
		Description:   "The code adds behavior the prompt never requested, such as role checks or arbitrary limits.",
		Example:       "if user != \"admin\": raise PermissionError",
	},
	{
		Name:          PatternPromptBiased,
		Stage:         StageLinguistic,
		SeverityRange: "5-7",
		Description:   "Example values from the prompt are hardcoded into the logic instead of generalized.",
		Example:       "if name == \"John Smith\": apply_discount()",
	},
	{
		Name:          PatternMissingCornerCase,
		Stage:         StageStatic,
		SeverityRange: "4-6",
		Description:   "An obvious edge case is unhandled, typically division without a zero guard.",
		Example:       "average = total / count  # count may be 0",
	},
	{
		Name:          PatternMissingFeature,
		Stage:         StageLinguistic,
		SeverityRange: "5-7",
		Description:   "A feature the prompt explicitly requested has no implementation.",
		Example:       "prompt asks add/remove/sort, code only adds",
	},
}

// Catalog returns the taxonomy reference list served by the patterns
// endpoint.
func Catalog() []PatternDefinition {
	out := make([]PatternDefinition, len(catalog))
	copy(out, catalog)
	return out
}
