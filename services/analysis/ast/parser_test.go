package ast

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, source string) *Module {
	t.Helper()
	mod, err := NewParser().Parse(context.Background(), source)
	require.NoError(t, err)
	t.Cleanup(mod.Close)
	return mod
}

func TestParse_CleanSource(t *testing.T) {
	mod := mustParse(t, "def add(a, b):\n    return a + b\n")

	assert.Nil(t, mod.SyntaxError())
	assert.False(t, mod.Partial())
	require.NotNil(t, mod.Root())
	assert.Equal(t, "module", mod.Root().Type())
}

func TestParse_SyntaxErrorRecoversPartialTree(t *testing.T) {
	source := "x = 1\ny = 2\ndef broken(a, b\n"
	mod := mustParse(t, source)

	require.NotNil(t, mod.SyntaxError())
	assert.True(t, mod.Partial())
	// The recovered tree still sees the leading assignments.
	defined := mod.DefinedNames()
	assert.Contains(t, defined, "x")
	assert.Contains(t, defined, "y")
}

func TestParse_SizeLimit(t *testing.T) {
	parser := NewParser(WithMaxSourceSize(10))
	_, err := parser.Parse(context.Background(), strings.Repeat("x=1\n", 100))
	require.ErrorIs(t, err, ErrSourceTooLarge)
}

func TestParse_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser().Parse(ctx, "x = 1")
	require.Error(t, err)
}

func TestDefinedNames(t *testing.T) {
	source := `
import math
from collections import Counter as C

def process(items, limit=10):
    total = 0
    for item in items:
        total += item
    with open("f") as fh:
        pass
    squares = [n * n for n in items]
    return total

class Report:
    pass
`
	mod := mustParse(t, source)
	defined := mod.DefinedNames()

	for _, name := range []string{"math", "C", "process", "items", "limit", "total", "item", "fh", "n", "squares", "Report"} {
		assert.Contains(t, defined, name, "expected %q to be defined", name)
	}
}

func TestUsedNames_ExcludesAttributeAndKeywordPositions(t *testing.T) {
	source := "result = helper(data, key=fn)\nprint(result.value)\n"
	mod := mustParse(t, source)
	used := mod.UsedNames()

	assert.Contains(t, used, "helper")
	assert.Contains(t, used, "data")
	assert.Contains(t, used, "fn")
	assert.Contains(t, used, "result")
	// Attribute name and keyword name are not uses.
	assert.NotContains(t, used, "value")
	assert.NotContains(t, used, "key")
}

func TestUsedNames_Locations(t *testing.T) {
	mod := mustParse(t, "x = 1\nprint(mystery)\n")
	used := mod.UsedNames()

	loc, ok := used["mystery"]
	require.True(t, ok)
	assert.Equal(t, 2, loc.Line)
	assert.Equal(t, "print(mystery)", loc.Text)
}

func TestImportedModules(t *testing.T) {
	source := "import os.path\nimport numpy as np\nfrom collections import Counter\n"
	mod := mustParse(t, source)
	mods := mod.ImportedModules()

	assert.ElementsMatch(t, []string{"os", "numpy", "collections"}, mods)
}

func TestFunctions(t *testing.T) {
	source := `
def empty():
    pass

def documented():
    """Docstring only."""

def worker(a, b):
    total = a + b
    return total

class Box:
    def method(self):
        return 1
`
	mod := mustParse(t, source)
	fns := mod.Functions()
	require.Len(t, fns, 4)

	byName := make(map[string]FunctionInfo)
	for _, fn := range fns {
		byName[fn.Name] = fn
	}

	assert.True(t, byName["empty"].OnlyPass)
	assert.True(t, byName["documented"].OnlyPass)
	assert.True(t, byName["documented"].Docstring)
	assert.False(t, byName["worker"].OnlyPass)
	assert.True(t, byName["worker"].HasReturn)
	assert.Equal(t, []string{"a", "b"}, byName["worker"].Params)
	assert.True(t, byName["method"].IsMethod)
	assert.False(t, byName["worker"].IsMethod)
}

func TestCalls_ArgClassification(t *testing.T) {
	mod := mustParse(t, `sqrt("16")` + "\n" + `pow(2, 8)` + "\n" + `helper(x, flag=True)` + "\n")
	calls := mod.Calls()
	require.Len(t, calls, 3)

	assert.Equal(t, "sqrt", calls[0].Callee)
	require.Len(t, calls[0].Args, 1)
	assert.Equal(t, ArgString, calls[0].Args[0].Kind)

	assert.Equal(t, "pow", calls[1].Callee)
	require.Len(t, calls[1].Args, 2)
	assert.Equal(t, ArgNumber, calls[1].Args[0].Kind)

	// Keyword arguments are not positional args.
	require.Len(t, calls[2].Args, 1)
	assert.Equal(t, ArgName, calls[2].Args[0].Kind)
}

func TestReturns(t *testing.T) {
	source := `
def a():
    return [1, 2]

def b():
    return {"k": 1}

def c():
    return

def d():
    return name
`
	mod := mustParse(t, source)
	rets := mod.Returns()
	require.Len(t, rets, 4)
	assert.Equal(t, ReturnList, rets[0].Kind)
	assert.Equal(t, ReturnDict, rets[1].Kind)
	assert.Equal(t, ReturnNone, rets[2].Kind)
	assert.Equal(t, ReturnName, rets[3].Kind)
}

func TestBranches_IdenticalBodies(t *testing.T) {
	source := `
if cond:
    x = compute()
    log(x)
else:
    x = compute()
    log(x)
`
	mod := mustParse(t, source)
	branches := mod.Branches()
	require.Len(t, branches, 1)
	assert.False(t, branches[0].HasElif)
	assert.NotEmpty(t, branches[0].Alternative)
	assert.Equal(t, branches[0].Consequence, branches[0].Alternative)
}

func TestBranches_ElifMarked(t *testing.T) {
	source := `
if a:
    f()
elif b:
    g()
else:
    f()
`
	mod := mustParse(t, source)
	branches := mod.Branches()
	require.Len(t, branches, 1)
	assert.True(t, branches[0].HasElif)
}

func TestWhileLoops(t *testing.T) {
	source := `
while i < n:
    i += 1
`
	mod := mustParse(t, source)
	loops := mod.WhileLoops()
	require.Len(t, loops, 1)
	assert.ElementsMatch(t, []string{"i", "n"}, loops[0].GuardVars)
	assert.Equal(t, []string{"i"}, loops[0].Modified)
}

func TestInfer(t *testing.T) {
	source := `
prices = {"apple": 3}
items = [1, 2, 3]
name = "bob"
count = 7
built = dict()
flipped = compute()
changed = {"a": 1}
changed = [1]
`
	mod := mustParse(t, source)
	inf := mod.Infer()

	kind, ok := inf.Kind("prices")
	require.True(t, ok)
	assert.Equal(t, ValueMapping, kind)

	kind, ok = inf.Kind("items")
	require.True(t, ok)
	assert.Equal(t, ValueSequence, kind)

	kind, ok = inf.Kind("built")
	require.True(t, ok)
	assert.Equal(t, ValueMapping, kind)

	_, ok = inf.Kind("flipped")
	assert.False(t, ok, "unknown call results must not be inferred")

	_, ok = inf.Kind("changed")
	assert.False(t, ok, "conflicting reassignment must drop inference")

	_, ok = inf.Kind("never_assigned")
	assert.False(t, ok)
}

func TestAttributeAccesses(t *testing.T) {
	mod := mustParse(t, "total = cart.cost\nos.path.join(a, b)\n")
	accesses := mod.AttributeAccesses()
	require.NotEmpty(t, accesses)

	var found bool
	for _, acc := range accesses {
		if acc.Object == "cart" && acc.Attr == "cost" {
			found = true
			assert.True(t, acc.ObjectName)
			assert.Equal(t, 1, acc.Line)
		}
	}
	assert.True(t, found)
}

func TestStringLiterals_StripQuotes(t *testing.T) {
	mod := mustParse(t, `x = "hello"`+"\n"+`y = 'world'`+"\n")
	lits := mod.StringLiterals()
	require.Len(t, lits, 2)
	assert.Equal(t, "hello", lits[0].Text)
	assert.Equal(t, "world", lits[1].Text)
}
