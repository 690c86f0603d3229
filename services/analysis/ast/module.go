package ast

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Module is the parsed form of one snippet. It owns the tree-sitter
// tree; callers must Close() it when done. All query methods are
// read-only and safe to call concurrently once the Module is built.
type Module struct {
	source    []byte
	lines     []string
	tree      *sitter.Tree
	root      *sitter.Node
	partial   bool
	syntaxErr *SyntaxError
}

// Close releases the underlying syntax tree.
func (m *Module) Close() {
	if m.tree != nil {
		m.tree.Close()
		m.tree = nil
	}
}

// Root returns the tree root, nil after Close.
func (m *Module) Root() *sitter.Node { return m.root }

// Source returns the bytes the current tree was parsed from. After
// partial recovery this is the truncated source, not the original.
func (m *Module) Source() []byte { return m.source }

// Lines returns the original snippet split into lines.
func (m *Module) Lines() []string { return m.lines }

// Partial reports whether the tree was recovered by dropping trailing
// lines.
func (m *Module) Partial() bool { return m.partial }

// SyntaxError returns the first parse failure, nil for clean input.
func (m *Module) SyntaxError() *SyntaxError { return m.syntaxErr }

func (m *Module) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(m.source[n.StartByte():n.EndByte()])
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row + 1)
}

// walk visits every node in the tree depth-first.
func (m *Module) walk(visit func(n *sitter.Node)) {
	var rec func(n *sitter.Node)
	rec = func(n *sitter.Node) {
		if n == nil {
			return
		}
		visit(n)
		for i := 0; i < int(n.ChildCount()); i++ {
			rec(n.Child(i))
		}
	}
	rec(m.root)
}

// =============================================================================
// Name binding queries
// =============================================================================

// DefinedNames returns every identifier the snippet binds: function and
// class names, assignment targets, parameters, loop/with/except/walrus
// targets, comprehension targets, and imported names.
func (m *Module) DefinedNames() map[string]struct{} {
	defined := make(map[string]struct{})
	add := func(name string) {
		if name != "" {
			defined[name] = struct{}{}
		}
	}
	addTargets := func(n *sitter.Node) {
		m.collectIdentifiers(n, add)
	}

	m.walk(func(n *sitter.Node) {
		switch n.Type() {
		case "function_definition", "class_definition":
			add(m.text(n.ChildByFieldName("name")))
		case "parameters", "lambda_parameters":
			m.collectParamNames(n, add)
		case "assignment", "augmented_assignment":
			addTargets(n.ChildByFieldName("left"))
		case "named_expression":
			add(m.text(n.ChildByFieldName("name")))
		case "for_statement":
			addTargets(n.ChildByFieldName("left"))
		case "for_in_clause":
			addTargets(n.ChildByFieldName("left"))
		case "as_pattern":
			// `with open(f) as g`, `except ValueError as e`
			if alias := n.ChildByFieldName("alias"); alias != nil {
				addTargets(alias)
			}
		case "global_statement", "nonlocal_statement":
			addTargets(n)
		case "import_statement", "import_from_statement":
			m.collectImportNames(n, add)
		}
	})
	return defined
}

// UsedNames returns identifiers in use position with their first
// location. Attribute names, keyword-argument names, and binding
// positions are excluded.
func (m *Module) UsedNames() map[string]Location {
	used := make(map[string]Location)
	m.walk(func(n *sitter.Node) {
		if n.Type() != "identifier" {
			return
		}
		if m.isBindingPosition(n) {
			return
		}
		name := m.text(n)
		if _, seen := used[name]; !seen {
			used[name] = Location{
				Line:   line(n),
				Column: int(n.StartPoint().Column),
				Text:   m.lineText(line(n)),
			}
		}
	})
	return used
}

// isBindingPosition reports whether the identifier node binds a name
// rather than reading one.
func (m *Module) isBindingPosition(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "function_definition", "class_definition":
		return parent.ChildByFieldName("name") != nil &&
			parent.ChildByFieldName("name").StartByte() == n.StartByte()
	case "attribute":
		attr := parent.ChildByFieldName("attribute")
		return attr != nil && attr.StartByte() == n.StartByte()
	case "keyword_argument":
		name := parent.ChildByFieldName("name")
		return name != nil && name.StartByte() == n.StartByte()
	case "parameters", "lambda_parameters", "default_parameter",
		"typed_parameter", "typed_default_parameter",
		"list_splat_pattern", "dictionary_splat_pattern":
		return true
	case "dotted_name", "aliased_import", "import_prefix":
		return true
	case "as_pattern_target":
		return true
	case "pattern_list", "tuple_pattern":
		// Binding only when the pattern is an assignment or loop target.
		return m.underBindingPattern(parent)
	case "assignment", "augmented_assignment":
		left := parent.ChildByFieldName("left")
		return left != nil && left.StartByte() == n.StartByte() && parent.Type() == "assignment"
	case "named_expression":
		name := parent.ChildByFieldName("name")
		return name != nil && name.StartByte() == n.StartByte()
	case "for_statement", "for_in_clause":
		left := parent.ChildByFieldName("left")
		return left != nil && left.StartByte() == n.StartByte()
	case "global_statement", "nonlocal_statement":
		return true
	}
	return false
}

func (m *Module) underBindingPattern(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "assignment":
		left := parent.ChildByFieldName("left")
		return left != nil && left.StartByte() == n.StartByte()
	case "for_statement", "for_in_clause":
		left := parent.ChildByFieldName("left")
		return left != nil && left.StartByte() == n.StartByte()
	}
	return false
}

func (m *Module) collectIdentifiers(n *sitter.Node, add func(string)) {
	if n == nil {
		return
	}
	if n.Type() == "identifier" {
		add(m.text(n))
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		m.collectIdentifiers(n.Child(i), add)
	}
}

func (m *Module) collectParamNames(params *sitter.Node, add func(string)) {
	for i := 0; i < int(params.ChildCount()); i++ {
		child := params.Child(i)
		switch child.Type() {
		case "identifier":
			add(m.text(child))
		case "default_parameter", "typed_default_parameter":
			add(m.text(child.ChildByFieldName("name")))
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			m.collectIdentifiers(child, add)
		}
	}
}

func (m *Module) collectImportNames(n *sitter.Node, add func(string)) {
	switch n.Type() {
	case "import_statement":
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "dotted_name":
				// `import a.b` binds `a`
				add(rootSegment(m.text(child)))
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					add(m.text(alias))
				} else if name := child.ChildByFieldName("name"); name != nil {
					add(rootSegment(m.text(name)))
				}
			}
		}
	case "import_from_statement":
		sawImport := false
		for i := 0; i < int(n.ChildCount()); i++ {
			child := n.Child(i)
			switch child.Type() {
			case "import":
				sawImport = true
			case "dotted_name":
				if sawImport {
					add(rootSegment(m.text(child)))
				}
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					add(m.text(alias))
				} else if name := child.ChildByFieldName("name"); name != nil {
					add(rootSegment(m.text(name)))
				}
			case "identifier":
				if sawImport {
					add(m.text(child))
				}
			}
		}
	}
}

// ImportedModules returns the module paths named by import statements.
// `from x import y` contributes the root of x; `import a.b` contributes
// `a`.
func (m *Module) ImportedModules() []string {
	var mods []string
	seen := make(map[string]struct{})
	add := func(path string) {
		root := rootSegment(path)
		if root == "" {
			return
		}
		if _, ok := seen[root]; ok {
			return
		}
		seen[root] = struct{}{}
		mods = append(mods, root)
	}
	m.walk(func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.ChildCount()); i++ {
				child := n.Child(i)
				if child.Type() == "dotted_name" {
					add(m.text(child))
				}
				if child.Type() == "aliased_import" {
					for j := 0; j < int(child.ChildCount()); j++ {
						if g := child.Child(j); g.Type() == "dotted_name" {
							add(m.text(g))
						}
					}
				}
			}
		case "import_from_statement":
			if mod := n.ChildByFieldName("module_name"); mod != nil {
				add(m.text(mod))
			}
		}
	})
	return mods
}

func rootSegment(path string) string {
	path = strings.TrimLeft(path, ".")
	if idx := strings.Index(path, "."); idx >= 0 {
		return path[:idx]
	}
	return path
}

// =============================================================================
// Structure queries
// =============================================================================

// ClassNames returns the names defined by class statements.
func (m *Module) ClassNames() map[string]struct{} {
	classes := make(map[string]struct{})
	m.walk(func(n *sitter.Node) {
		if n.Type() == "class_definition" {
			if name := m.text(n.ChildByFieldName("name")); name != "" {
				classes[name] = struct{}{}
			}
		}
	})
	return classes
}

// Functions returns a summary of every function definition.
func (m *Module) Functions() []FunctionInfo {
	var fns []FunctionInfo
	m.walk(func(n *sitter.Node) {
		if n.Type() != "function_definition" {
			return
		}
		info := FunctionInfo{
			Name:      m.text(n.ChildByFieldName("name")),
			StartLine: line(n),
			EndLine:   int(n.EndPoint().Row + 1),
		}
		if parent := n.Parent(); parent != nil && parent.Parent() != nil {
			info.IsMethod = parent.Parent().Type() == "class_definition"
		}
		if params := n.ChildByFieldName("parameters"); params != nil {
			m.collectParamNames(params, func(name string) {
				info.Params = append(info.Params, name)
			})
		}
		if body := n.ChildByFieldName("body"); body != nil {
			info.BodyStmts = int(body.NamedChildCount())
			info.OnlyPass = m.bodyIsOnlyPass(body)
			info.Docstring = m.firstStmtIsString(body)
			m.walkFrom(body, func(c *sitter.Node) {
				if c.Type() == "return_statement" {
					info.HasReturn = true
				}
			})
		}
		fns = append(fns, info)
	})
	return fns
}

func (m *Module) bodyIsOnlyPass(body *sitter.Node) bool {
	count := int(body.NamedChildCount())
	if count == 0 {
		return true
	}
	for i := 0; i < count; i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "pass_statement", "comment":
		case "expression_statement":
			if int(child.NamedChildCount()) == 1 {
				inner := child.NamedChild(0)
				if inner.Type() == "ellipsis" || inner.Type() == "string" {
					continue
				}
			}
			return false
		default:
			return false
		}
	}
	return true
}

func (m *Module) firstStmtIsString(body *sitter.Node) bool {
	if body.NamedChildCount() == 0 {
		return false
	}
	first := body.NamedChild(0)
	return first.Type() == "expression_statement" &&
		first.NamedChildCount() > 0 &&
		first.NamedChild(0).Type() == "string"
}

func (m *Module) walkFrom(n *sitter.Node, visit func(n *sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		m.walkFrom(n.Child(i), visit)
	}
}

// Calls returns every call expression with classified positional args.
func (m *Module) Calls() []CallInfo {
	var calls []CallInfo
	m.walk(func(n *sitter.Node) {
		if n.Type() != "call" {
			return
		}
		info := CallInfo{
			Callee: m.text(n.ChildByFieldName("function")),
			Line:   line(n),
		}
		if args := n.ChildByFieldName("arguments"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				arg := args.NamedChild(i)
				if arg.Type() == "keyword_argument" || arg.Type() == "comment" {
					continue
				}
				info.Args = append(info.Args, Arg{Kind: classifyArg(arg), Text: m.text(arg)})
			}
		}
		calls = append(calls, info)
	})
	return calls
}

func classifyArg(n *sitter.Node) ArgKind {
	switch n.Type() {
	case "string", "concatenated_string":
		return ArgString
	case "integer", "float":
		return ArgNumber
	case "identifier":
		return ArgName
	case "unary_operator":
		if arg := n.ChildByFieldName("argument"); arg != nil {
			if arg.Type() == "integer" || arg.Type() == "float" {
				return ArgNumber
			}
		}
	}
	return ArgOther
}

// Returns summarizes every return statement.
func (m *Module) Returns() []ReturnInfo {
	var rets []ReturnInfo
	m.walk(func(n *sitter.Node) {
		if n.Type() != "return_statement" {
			return
		}
		info := ReturnInfo{Line: line(n), Kind: ReturnNone}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			value := n.NamedChild(i)
			info.Text = m.text(value)
			switch value.Type() {
			case "list", "list_comprehension":
				info.Kind = ReturnList
			case "dictionary", "dictionary_comprehension":
				info.Kind = ReturnDict
			case "string", "concatenated_string":
				info.Kind = ReturnString
			case "integer", "float":
				info.Kind = ReturnNumber
			case "identifier":
				info.Kind = ReturnName
			default:
				info.Kind = ReturnOther
			}
			break
		}
		rets = append(rets, info)
	})
	return rets
}

// NumericLiterals returns every integer and float literal.
func (m *Module) NumericLiterals() []LiteralInfo {
	var lits []LiteralInfo
	m.walk(func(n *sitter.Node) {
		if n.Type() == "integer" || n.Type() == "float" {
			lits = append(lits, LiteralInfo{Text: m.text(n), Line: line(n)})
		}
	})
	return lits
}

// StringLiterals returns every string literal with quotes stripped.
func (m *Module) StringLiterals() []LiteralInfo {
	var lits []LiteralInfo
	m.walk(func(n *sitter.Node) {
		if n.Type() != "string" {
			return
		}
		lits = append(lits, LiteralInfo{Text: stripQuotes(m.text(n)), Line: line(n)})
	})
	return lits
}

func stripQuotes(raw string) string {
	for _, prefix := range []string{"f", "r", "b", "u", "F", "R", "B", "U"} {
		raw = strings.TrimPrefix(raw, prefix)
	}
	return strings.Trim(raw, `"'`)
}

// AttributeAccesses returns every `obj.attr` expression.
func (m *Module) AttributeAccesses() []AttributeAccess {
	var accesses []AttributeAccess
	m.walk(func(n *sitter.Node) {
		if n.Type() != "attribute" {
			return
		}
		object := n.ChildByFieldName("object")
		attr := n.ChildByFieldName("attribute")
		if object == nil || attr == nil {
			return
		}
		accesses = append(accesses, AttributeAccess{
			Object:     m.text(object),
			Attr:       m.text(attr),
			Line:       line(n),
			ObjectName: object.Type() == "identifier",
		})
	})
	return accesses
}

// Branches returns if/else pairs with whitespace-normalized body text
// for structural equality checks. Chains with elif are marked so the
// caller can skip them.
func (m *Module) Branches() []Branch {
	var branches []Branch
	m.walk(func(n *sitter.Node) {
		if n.Type() != "if_statement" {
			return
		}
		b := Branch{Line: line(n)}
		consequence := n.ChildByFieldName("consequence")
		if consequence == nil {
			return
		}
		b.Consequence = normalizeBlock(m.text(consequence))
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			switch child.Type() {
			case "elif_clause":
				b.HasElif = true
			case "else_clause":
				if body := child.ChildByFieldName("body"); body != nil {
					b.Alternative = normalizeBlock(m.text(body))
				}
			}
		}
		branches = append(branches, b)
	})
	return branches
}

// normalizeBlock strips per-line indentation and blank lines so that
// textually identical bodies at different depths compare equal.
func normalizeBlock(block string) string {
	var out []string
	for _, l := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(l)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

// WhileLoops returns guard variables and body-modified variables for
// every while loop whose condition compares identifiers.
func (m *Module) WhileLoops() []WhileLoop {
	var loops []WhileLoop
	m.walk(func(n *sitter.Node) {
		if n.Type() != "while_statement" {
			return
		}
		loop := WhileLoop{Line: line(n)}
		seen := make(map[string]struct{})
		if cond := n.ChildByFieldName("condition"); cond != nil {
			m.collectIdentifiers(cond, func(name string) {
				if _, ok := seen[name]; !ok {
					seen[name] = struct{}{}
					loop.GuardVars = append(loop.GuardVars, name)
				}
			})
		}
		modified := make(map[string]struct{})
		if body := n.ChildByFieldName("body"); body != nil {
			m.walkFrom(body, func(c *sitter.Node) {
				if c.Type() == "assignment" || c.Type() == "augmented_assignment" {
					m.collectIdentifiers(c.ChildByFieldName("left"), func(name string) {
						modified[name] = struct{}{}
					})
				}
			})
		}
		for name := range modified {
			loop.Modified = append(loop.Modified, name)
		}
		loops = append(loops, loop)
	})
	return loops
}

// Division is one `a / b` expression whose divisor is not a numeric
// constant.
type Division struct {
	Line    int
	Divisor string
	Text    string
}

// Divisions returns true-division expressions with non-constant
// divisors. Floor division and constant divisors are skipped.
func (m *Module) Divisions() []Division {
	var divs []Division
	m.walk(func(n *sitter.Node) {
		if n.Type() != "binary_operator" {
			return
		}
		op := n.ChildByFieldName("operator")
		if op == nil || m.text(op) != "/" {
			return
		}
		right := n.ChildByFieldName("right")
		if right == nil || right.Type() == "integer" || right.Type() == "float" {
			return
		}
		divs = append(divs, Division{
			Line:    line(n),
			Divisor: m.text(right),
			Text:    m.lineText(line(n)),
		})
	})
	return divs
}

func (m *Module) lineText(n int) string {
	if n >= 1 && n <= len(m.lines) {
		return strings.TrimSpace(m.lines[n-1])
	}
	return ""
}
