// Copyright (C) 2025 CodeGuard Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package static

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rony31416/codeguard-test/pkg/logging"
	"github.com/rony31416/codeguard-test/services/analysis/ast"
	"github.com/rony31416/codeguard-test/services/analysis/datatypes"
)

func newInput(t *testing.T, prompt, source string) *Input {
	t.Helper()
	mod, err := ast.NewParser().Parse(context.Background(), source)
	require.NoError(t, err)
	t.Cleanup(mod.Close)
	return &Input{
		Prompt: prompt,
		Source: source,
		Lines:  strings.Split(source, "\n"),
		Module: mod,
	}
}

func detect(t *testing.T, d Detector, prompt, source string) datatypes.Finding {
	t.Helper()
	return d.Detect(context.Background(), newInput(t, prompt, source))
}

// =============================================================================
// Syntax
// =============================================================================

func TestSyntaxDetector(t *testing.T) {
	t.Run("clean source", func(t *testing.T) {
		f := detect(t, &SyntaxDetector{}, "", "def f(a, b):\n    return a + b\n")
		assert.False(t, f.Found)
		assert.Empty(t, f.Locations)
	})

	t.Run("missing colon", func(t *testing.T) {
		f := detect(t, &SyntaxDetector{}, "", "def f(a,b)\n    return a+b\n")
		require.True(t, f.Found)
		assert.Equal(t, 9, f.Severity)
		assert.Equal(t, 1.0, f.Confidence)
		require.NotEmpty(t, f.Locations)
		assert.GreaterOrEqual(t, f.Locations[0].Line, 1)
	})
}

// =============================================================================
// Hallucination
// =============================================================================

func TestHallucinationDetector(t *testing.T) {
	t.Run("no undefined names", func(t *testing.T) {
		source := `
import math

def area(r):
    return math.pi * r * r
`
		f := detect(t, &HallucinationDetector{}, "", source)
		assert.False(t, f.Found, "message: %s", f.Message)
	})

	t.Run("undefined helper", func(t *testing.T) {
		f := detect(t, &HallucinationDetector{}, "", "def f(x):\n    return normalize_input(x)\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "normalize_input")
		assert.Equal(t, 8, f.Severity)
	})

	t.Run("camelcase call without class", func(t *testing.T) {
		f := detect(t, &HallucinationDetector{}, "", "loader = DataLoader(path)\npath = \"x\"\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "DataLoader")
	})

	t.Run("defined class is not flagged", func(t *testing.T) {
		source := `
class Point:
    pass

p = Point()
`
		f := detect(t, &HallucinationDetector{}, "", source)
		assert.False(t, f.Found, "message: %s", f.Message)
	})

	t.Run("params and loop targets count as defined", func(t *testing.T) {
		source := `
def total(items):
    acc = 0
    for item in items:
        acc += item
    return acc
`
		f := detect(t, &HallucinationDetector{}, "", source)
		assert.False(t, f.Found, "message: %s", f.Message)
	})
}

// =============================================================================
// Incomplete generation
// =============================================================================

func TestIncompleteDetector(t *testing.T) {
	t.Run("complete code", func(t *testing.T) {
		f := detect(t, &IncompleteDetector{}, "", "def f(a):\n    return a * 2\n")
		assert.False(t, f.Found)
	})

	t.Run("dangling assignment", func(t *testing.T) {
		f := detect(t, &IncompleteDetector{}, "", "result =\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "assignment with no value")
	})

	t.Run("pass-only function", func(t *testing.T) {
		f := detect(t, &IncompleteDetector{}, "", "def handler(evt):\n    pass\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "empty body")
	})

	t.Run("todo marker", func(t *testing.T) {
		f := detect(t, &IncompleteDetector{}, "", "x = 1  # TODO handle negatives\n")
		assert.True(t, f.Found)
	})

	t.Run("stuck while loop", func(t *testing.T) {
		source := `
i = 0
while i < n:
    i += 1
`
		f := detect(t, &IncompleteDetector{}, "", source)
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "while loop")
	})
}

// =============================================================================
// Silly mistakes
// =============================================================================

func TestSillyMistakeDetector(t *testing.T) {
	t.Run("clean arithmetic", func(t *testing.T) {
		f := detect(t, &SillyMistakeDetector{}, "", "total = price - discount\n")
		assert.False(t, f.Found)
	})

	t.Run("reversed operands", func(t *testing.T) {
		f := detect(t, &SillyMistakeDetector{}, "", "total = discount - price\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "operand order")
	})

	t.Run("string plus numeric name", func(t *testing.T) {
		f := detect(t, &SillyMistakeDetector{}, "", `label = "total: " + price`+"\n")
		assert.True(t, f.Found)
	})

	t.Run("identical branches", func(t *testing.T) {
		source := `
if flag:
    x = load()
else:
    x = load()
`
		f := detect(t, &SillyMistakeDetector{}, "", source)
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "identical")
	})

	t.Run("elif chains skipped", func(t *testing.T) {
		source := `
if a:
    f()
elif b:
    f()
else:
    f()
`
		f := detect(t, &SillyMistakeDetector{}, "", source)
		assert.False(t, f.Found)
	})
}

// =============================================================================
// Wrong attribute
// =============================================================================

func TestWrongAttributeDetector(t *testing.T) {
	t.Run("attribute on inferred dict", func(t *testing.T) {
		source := `
item = {"cost": 5}
total = item.cost
`
		f := detect(t, &WrongAttributeDetector{}, "", source)
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "item.cost")
	})

	t.Run("dict method is fine", func(t *testing.T) {
		source := `
item = {"cost": 5}
for k in item.keys():
    print(k)
`
		f := detect(t, &WrongAttributeDetector{}, "", source)
		assert.False(t, f.Found, "message: %s", f.Message)
	})

	t.Run("uninferred object never flagged", func(t *testing.T) {
		f := detect(t, &WrongAttributeDetector{}, "", "total = cart.cost\n")
		assert.False(t, f.Found)
	})

	t.Run("non-mapping type never flagged", func(t *testing.T) {
		source := `
items = [1, 2]
n = items.count
`
		f := detect(t, &WrongAttributeDetector{}, "", source)
		assert.False(t, f.Found)
	})
}

// =============================================================================
// Wrong input type
// =============================================================================

func TestWrongInputTypeDetector(t *testing.T) {
	t.Run("numeric args", func(t *testing.T) {
		f := detect(t, &WrongInputTypeDetector{}, "", "import math\nmath.sqrt(16)\n")
		assert.False(t, f.Found)
	})

	t.Run("string to sqrt", func(t *testing.T) {
		f := detect(t, &WrongInputTypeDetector{}, "", "import math\nmath.sqrt(\"16\")\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "sqrt")
	})

	t.Run("string to int is allowed target but flagged literal", func(t *testing.T) {
		f := detect(t, &WrongInputTypeDetector{}, "", "x = int(\"42\")\n")
		assert.True(t, f.Found)
	})

	t.Run("non-numeric function ignored", func(t *testing.T) {
		f := detect(t, &WrongInputTypeDetector{}, "", "print(\"hello\")\n")
		assert.False(t, f.Found)
	})
}

// =============================================================================
// Prompt bias
// =============================================================================

func TestPromptBiasDetector(t *testing.T) {
	t.Run("generic logic", func(t *testing.T) {
		f := detect(t, &PromptBiasDetector{}, "", "if name == user_input:\n    pass\n")
		assert.False(t, f.Found)
	})

	t.Run("example literal comparison", func(t *testing.T) {
		f := detect(t, &PromptBiasDetector{}, "", `if name == "example_user":`+"\n    grant()\n")
		assert.True(t, f.Found)
	})

	t.Run("main block excluded", func(t *testing.T) {
		source := `if __name__ == "__main__":` + "\n" + `    run_demo("test_input")` + "\n"
		f := detect(t, &PromptBiasDetector{}, "", source)
		assert.False(t, f.Found)
	})
}

// =============================================================================
// Non-prompted considerations
// =============================================================================

func TestNPCDetector(t *testing.T) {
	t.Run("role gate not in prompt", func(t *testing.T) {
		source := `
def transfer(user, amount):
    if user.role == "admin":
        raise PermissionError("admins cannot transfer")
    return amount
`
		f := detect(t, &NPCDetector{}, "transfer an amount between accounts", source)
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "admin")
	})

	t.Run("role gate requested in prompt", func(t *testing.T) {
		source := `
def transfer(user, amount):
    if user.role == "admin":
        raise PermissionError("no")
    return amount
`
		f := detect(t, &NPCDetector{}, "reject admin users with an error", source)
		assert.False(t, f.Found)
	})

	t.Run("magic threshold", func(t *testing.T) {
		source := `
def withdraw(amount):
    if amount > 10000:
        raise ValueError("too large")
    return amount
`
		f := detect(t, &NPCDetector{}, "withdraw an amount", source)
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "10000")
	})
}

// =============================================================================
// Missing corner case
// =============================================================================

func TestCornerCaseDetector(t *testing.T) {
	t.Run("unguarded division", func(t *testing.T) {
		f := detect(t, &CornerCaseDetector{}, "", "def avg(nums):\n    return sum(nums) / len(nums)\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "zero guard")
	})

	t.Run("guarded division", func(t *testing.T) {
		source := `
def avg(nums):
    if len(nums) == 0:
        return 0
    return sum(nums) / len(nums)
`
		f := detect(t, &CornerCaseDetector{}, "", source)
		assert.False(t, f.Found)
	})

	t.Run("try except counts as guard", func(t *testing.T) {
		source := `
def avg(nums):
    try:
        return sum(nums) / len(nums)
    except ZeroDivisionError:
        return 0
`
		f := detect(t, &CornerCaseDetector{}, "", source)
		assert.False(t, f.Found)
	})

	t.Run("constant divisor skipped", func(t *testing.T) {
		f := detect(t, &CornerCaseDetector{}, "", "half = total / 2\n")
		assert.False(t, f.Found)
	})

	t.Run("bare division not flagged", func(t *testing.T) {
		f := detect(t, &CornerCaseDetector{}, "", "def ratio(a, b):\n    return a / b\n")
		assert.False(t, f.Found)
	})

	t.Run("count based division flagged", func(t *testing.T) {
		f := detect(t, &CornerCaseDetector{}, "", "rate = hits / events.count(kind)\n")
		require.True(t, f.Found)
		assert.Contains(t, f.Message, "zero guard")
	})
}

// =============================================================================
// Runner
// =============================================================================

type panicDetector struct{}

func (p *panicDetector) Name() string { return "PanicDetector" }
func (p *panicDetector) Key() string  { return "panic_check" }
func (p *panicDetector) Detect(ctx context.Context, in *Input) datatypes.Finding {
	panic("boom")
}

func TestRunner_FaultIsolation(t *testing.T) {
	logger := logging.New(logging.Config{Quiet: true})
	runner := NewRunner(logger, WithDetectors(&panicDetector{}, &SyntaxDetector{}))

	in := newInput(t, "", "x = 1\n")
	results := runner.Run(context.Background(), in)

	require.Len(t, results, 2)
	panicked := results["panic_check"]
	assert.False(t, panicked.Found)
	assert.Contains(t, panicked.Err, "PanicDetector failed")
	assert.Contains(t, panicked.Err, "boom")

	clean := results[datatypes.KeySyntaxError]
	assert.False(t, clean.Found)
	assert.Empty(t, clean.Err)
}

func TestRunner_AllDefaultDetectorsReport(t *testing.T) {
	logger := logging.New(logging.Config{Quiet: true})
	runner := NewRunner(logger)

	in := newInput(t, "add two numbers", "def add(a, b):\n    return a + b\n")
	results := runner.Run(context.Background(), in)

	keys := []string{
		datatypes.KeySyntaxError,
		datatypes.KeyHallucinatedObjects,
		datatypes.KeyIncompleteGeneration,
		datatypes.KeySillyMistakes,
		datatypes.KeyWrongAttribute,
		datatypes.KeyWrongInputType,
		datatypes.KeyPromptBiased,
		datatypes.KeyNPC,
		datatypes.KeyMissingCornerCase,
	}
	require.Len(t, results, len(keys))
	for _, key := range keys {
		f, ok := results[key]
		require.True(t, ok, "missing result for %s", key)
		assert.False(t, f.Found, "clean snippet flagged by %s: %s", key, f.Message)
	}
}
