package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Inference is a lightweight flow-insensitive type guess for local
// names, built from literal assignments and a handful of well-known
// constructor calls. It exists so the wrong-attribute detector can
// restrict itself to names whose static type it actually knows,
// instead of guessing from spelling.
type Inference struct {
	kinds map[string]ValueKind
}

// Infer builds an Inference over the module. A name assigned more than
// once with conflicting kinds is dropped to ValueUnknown; flagging on a
// stale binding would be a false positive.
func (m *Module) Infer() *Inference {
	inf := &Inference{kinds: make(map[string]ValueKind)}
	m.walk(func(n *sitter.Node) {
		if n.Type() != "assignment" {
			return
		}
		left := n.ChildByFieldName("left")
		right := n.ChildByFieldName("right")
		if left == nil || right == nil || left.Type() != "identifier" {
			return
		}
		name := m.text(left)
		kind := m.valueKind(right)
		prev, seen := inf.kinds[name]
		if seen && prev != kind {
			inf.kinds[name] = ValueUnknown
			return
		}
		inf.kinds[name] = kind
	})
	return inf
}

// Kind returns the inferred kind for a name. ok is false when the name
// was never assigned a recognizable literal, or was reassigned with a
// different kind.
func (i *Inference) Kind(name string) (ValueKind, bool) {
	kind, seen := i.kinds[name]
	if !seen || kind == ValueUnknown {
		return ValueUnknown, false
	}
	return kind, true
}

func (m *Module) valueKind(n *sitter.Node) ValueKind {
	switch n.Type() {
	case "dictionary", "dictionary_comprehension":
		return ValueMapping
	case "list", "list_comprehension", "tuple":
		return ValueSequence
	case "set", "set_comprehension":
		return ValueSet
	case "string", "concatenated_string":
		return ValueString
	case "integer", "float":
		return ValueNumber
	case "call":
		switch m.text(n.ChildByFieldName("function")) {
		case "dict":
			return ValueMapping
		case "list", "tuple", "sorted":
			return ValueSequence
		case "set", "frozenset":
			return ValueSet
		case "str":
			return ValueString
		case "int", "float", "len", "sum":
			return ValueNumber
		}
	}
	return ValueUnknown
}
