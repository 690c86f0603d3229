package ast

import (
	"errors"
	"fmt"
)

// DefaultMaxSourceSize bounds accepted snippet size. Analysis targets
// short generated snippets, not whole repositories.
const DefaultMaxSourceSize int64 = 1024 * 1024

var (
	// ErrSourceTooLarge is returned when the snippet exceeds the size limit.
	ErrSourceTooLarge = errors.New("source exceeds size limit")

	// ErrInvalidSource is returned for non-UTF-8 input.
	ErrInvalidSource = errors.New("source is not valid UTF-8")
)

// Location identifies a position in the analyzed snippet. Lines are
// 1-based, columns 0-based (tree-sitter convention).
type Location struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Text   string `json:"text,omitempty"`
}

// SyntaxError describes the first parse failure in a snippet.
type SyntaxError struct {
	Line   int
	Offset int
	Text   string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, offset %d: %s", e.Line, e.Offset, e.Text)
}

// FunctionInfo summarizes one function definition.
type FunctionInfo struct {
	Name       string
	Params     []string
	StartLine  int
	EndLine    int
	BodyStmts  int
	OnlyPass   bool
	HasReturn  bool
	IsMethod   bool
	Docstring  bool
}

// ArgKind classifies a call argument for the wrong-input-type check.
type ArgKind int

const (
	ArgOther ArgKind = iota
	ArgString
	ArgNumber
	ArgName
)

// Arg is one positional call argument.
type Arg struct {
	Kind ArgKind
	Text string
}

// CallInfo summarizes one call expression.
type CallInfo struct {
	Callee string
	Line   int
	Args   []Arg
}

// ReturnKind classifies the value of a return statement.
type ReturnKind int

const (
	ReturnOther ReturnKind = iota
	ReturnNone
	ReturnList
	ReturnDict
	ReturnString
	ReturnNumber
	ReturnName
)

// ReturnInfo summarizes one return statement.
type ReturnInfo struct {
	Line int
	Kind ReturnKind
	Text string
}

// LiteralInfo is one numeric or string literal with its position.
type LiteralInfo struct {
	Text string
	Line int
}

// ValueKind classifies the right-hand side of an assignment for the
// lightweight type-inference pass.
type ValueKind int

const (
	ValueUnknown ValueKind = iota
	ValueMapping
	ValueSequence
	ValueSet
	ValueString
	ValueNumber
)

// AttributeAccess is one `obj.attr` expression.
type AttributeAccess struct {
	Object     string
	Attr       string
	Line       int
	ObjectName bool // object is a bare identifier
}

// Branch holds normalized if/else branch bodies for structural
// comparison.
type Branch struct {
	Line        int
	Consequence string
	Alternative string
	HasElif     bool
}

// WhileLoop captures guard and body variable usage for the
// stuck-loop heuristic.
type WhileLoop struct {
	Line      int
	GuardVars []string
	Modified  []string
}
