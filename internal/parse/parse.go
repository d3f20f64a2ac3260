// Package parse wraps the external tree-sitter parser behind the one seam
// the rest of the core depends on: "parse source text into a syntax tree
// with locations and parse diagnostics". Malformed source still yields a
// tree; errors surface as diagnostics, never as failures.
package parse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
	"go.lsp.dev/protocol"
)

// Severity of a parse diagnostic.
type Severity string

const (
	SeverityError Severity = "error"
)

// Diagnostic is one parse problem reported alongside the tree.
type Diagnostic struct {
	Range    protocol.Range
	Message  string
	Severity Severity
}

// Result bundles a parsed tree with its source bytes and diagnostics.
// The tree borrows Source; keep both together.
type Result struct {
	Tree        *sitter.Tree
	Source      []byte
	Diagnostics []Diagnostic
}

// Root returns the tree's root node.
func (r *Result) Root() *sitter.Node { return r.Tree.RootNode() }

// maxDiagnostics caps how many error nodes are reported per parse; editors
// only surface the first few anyway.
const maxDiagnostics = 50

// Parse parses Ruby source. The only error cases are a cancelled context or
// a tree-sitter internal failure; syntax errors are diagnostics, not errors.
func Parse(ctx context.Context, source []byte) (*Result, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(ruby.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	res := &Result{Tree: tree, Source: source}
	collectDiagnostics(tree.RootNode(), res)
	return res, nil
}

// collectDiagnostics walks the tree for ERROR and MISSING nodes.
func collectDiagnostics(node *sitter.Node, res *Result) {
	if len(res.Diagnostics) >= maxDiagnostics {
		return
	}
	if node.IsError() || node.IsMissing() {
		msg := "syntax error"
		if node.IsMissing() {
			msg = fmt.Sprintf("missing %s", node.Type())
		}
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Range:    NodeRange(node),
			Message:  msg,
			Severity: SeverityError,
		})
		return
	}
	if !node.HasError() {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		collectDiagnostics(node.Child(i), res)
	}
}

// PointToPosition converts a tree-sitter point (0-based row, byte column)
// to an LSP position.
func PointToPosition(p sitter.Point) protocol.Position {
	return protocol.Position{Line: p.Row, Character: p.Column}
}

// PositionToPoint converts an LSP position back to a tree-sitter point.
func PositionToPoint(p protocol.Position) sitter.Point {
	return sitter.Point{Row: p.Line, Column: p.Character}
}

// NodeRange returns the node's extent as an LSP range.
func NodeRange(node *sitter.Node) protocol.Range {
	return protocol.Range{
		Start: PointToPosition(node.StartPoint()),
		End:   PointToPosition(node.EndPoint()),
	}
}

// NodeAt returns the innermost named node enclosing pos, or nil when pos is
// outside the tree.
func NodeAt(root *sitter.Node, pos protocol.Position) *sitter.Node {
	pt := PositionToPoint(pos)
	return root.NamedDescendantForPointRange(pt, pt)
}
