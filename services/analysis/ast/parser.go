package ast

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ParserOption configures a Parser instance.
type ParserOption func(*Parser)

// WithMaxSourceSize sets the maximum snippet size the parser accepts.
func WithMaxSourceSize(bytes int64) ParserOption {
	return func(p *Parser) {
		if bytes > 0 {
			p.maxSourceSize = bytes
		}
	}
}

// Parser parses Python snippets with tree-sitter and answers the
// structural queries the detectors and cascade layers need.
//
// Description:
//
//	Parser is the language collaborator for the analysis pipeline. A
//	Parse call returns a Module carrying the syntax tree, the first
//	syntax error (if any), and a recovered partial tree when the full
//	source does not parse cleanly, so later detectors can still run.
//
// Thread Safety:
//
//	Parser is safe for concurrent use. Each Parse call creates its own
//	tree-sitter parser instance internally.
//
// Example:
//
//	parser := ast.NewParser()
//	mod, err := parser.Parse(ctx, "def f():\n    return 1\n")
//	if err != nil {
//	    return err
//	}
//	defer mod.Close()
type Parser struct {
	maxSourceSize int64
}

// NewParser creates a Parser with the given options.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		maxSourceSize: DefaultMaxSourceSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse parses a snippet and returns a Module.
//
// Description:
//
//	The full source is parsed first. When the tree contains errors the
//	first error location is recorded, then recovery drops trailing
//	lines one at a time and reparses until a clean tree is found. The
//	returned Module then holds the recovered tree with Partial()=true
//	and SyntaxError() still reporting the original failure. The caller
//	must Close() the Module to release the tree.
//
// Inputs:
//   - ctx: cancellation context, checked before and after parsing
//   - source: Python source text, must be valid UTF-8
//
// Outputs:
//   - *Module: never nil on success
//   - error: ErrSourceTooLarge, ErrInvalidSource, or a context error
func (p *Parser) Parse(ctx context.Context, source string) (*Module, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if int64(len(source)) > p.maxSourceSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrSourceTooLarge, len(source), p.maxSourceSize)
	}
	if !utf8.ValidString(source) {
		return nil, fmt.Errorf("%w", ErrInvalidSource)
	}

	content := []byte(source)
	tree, err := parseBytes(ctx, content)
	if err != nil {
		return nil, err
	}

	mod := &Module{
		source: content,
		lines:  strings.Split(source, "\n"),
		tree:   tree,
		root:   tree.RootNode(),
	}

	if mod.root == nil || !mod.root.HasError() {
		return mod, nil
	}

	mod.syntaxErr = locateFirstError(mod.root, content)
	p.recoverPartial(ctx, mod)
	return mod, nil
}

// Language returns the canonical language name for this parser.
func (p *Parser) Language() string {
	return "python"
}

// recoverPartial reparses with trailing lines dropped until the tree is
// clean, then swaps the recovered tree into the module. Keeps the
// original tree when nothing recovers.
func (p *Parser) recoverPartial(ctx context.Context, mod *Module) {
	lines := mod.lines
	for cut := len(lines) - 1; cut > 0; cut-- {
		if ctx.Err() != nil {
			return
		}
		candidate := []byte(strings.Join(lines[:cut], "\n"))
		if len(strings.TrimSpace(string(candidate))) == 0 {
			return
		}
		tree, err := parseBytes(ctx, candidate)
		if err != nil {
			return
		}
		root := tree.RootNode()
		if root != nil && !root.HasError() {
			mod.tree.Close()
			mod.tree = tree
			mod.root = root
			mod.source = candidate
			mod.partial = true
			return
		}
		tree.Close()
	}
}

func parseBytes(ctx context.Context, content []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	return tree, nil
}

// locateFirstError walks the tree for the first ERROR or missing node.
func locateFirstError(root *sitter.Node, content []byte) *SyntaxError {
	var found *SyntaxError
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil || n == nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			line := int(n.StartPoint().Row + 1)
			found = &SyntaxError{
				Line:   line,
				Offset: int(n.StartPoint().Column),
				Text:   lineAt(content, line),
			}
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if found == nil {
		// HasError with no ERROR node, report the root position.
		found = &SyntaxError{Line: 1, Offset: 0, Text: lineAt(content, 1)}
	}
	return found
}

func lineAt(content []byte, line int) string {
	lines := strings.Split(string(content), "\n")
	if line >= 1 && line <= len(lines) {
		return strings.TrimRight(lines[line-1], "\r")
	}
	return ""
}
