package resolve

import (
	"go.lsp.dev/protocol"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rubicon-ls/rubicon/internal/parse"
)

// Local variable scoping: blocks read their enclosing method's locals, but
// methods, namespace bodies, and lambdas start fresh. A block parameter
// shadows an outer variable of the same name.

func isHardScope(kind string) bool {
	switch kind {
	case "method", "singleton_method", "class", "module", "singleton_class", "lambda", "program":
		return true
	}
	return false
}

func isSoftScope(kind string) bool {
	return kind == "block" || kind == "do_block"
}

// findLocalBinding resolves an identifier reference to the binding that
// introduces it. Block parameters shadow enclosing locals; an assignment
// inside a block introduces a block-local only when no enclosing scope
// binds the name. Nil when the identifier is not a bound local.
func findLocalBinding(doc *Document, ref *sitter.Node) *LocalBinding {
	name := ref.Content(doc.Source)
	var blockLocal *LocalBinding
	for scope := enclosingScope(ref); scope != nil; scope = enclosingScope(scope) {
		if nameNode := paramBinding(doc, scope, name); nameNode != nil {
			return newLocalBinding(doc, scope, name, nameNode)
		}
		if isSoftScope(scope.Type()) {
			if blockLocal == nil {
				if nameNode := assignmentBinding(doc, scope, name, ref); nameNode != nil {
					blockLocal = newLocalBinding(doc, scope, name, nameNode)
				}
			}
			continue
		}
		if nameNode := assignmentBinding(doc, scope, name, ref); nameNode != nil {
			return newLocalBinding(doc, scope, name, nameNode)
		}
		break // hard scopes bound the search
	}
	return blockLocal
}

func newLocalBinding(doc *Document, scope *sitter.Node, name string, nameNode *sitter.Node) *LocalBinding {
	return &LocalBinding{
		VarName: name,
		DocURI:  doc.URI,
		Rng:     parse.NodeRange(nameNode),
		doc:     doc,
		scope:   scope,
	}
}

// enclosingScope returns the nearest scope node strictly above node.
func enclosingScope(node *sitter.Node) *sitter.Node {
	for p := node.Parent(); p != nil; p = p.Parent() {
		if isHardScope(p.Type()) || isSoftScope(p.Type()) {
			return p
		}
	}
	return nil
}

// bindingInScope returns the name node of the first binding of name directly
// in scope that does not come after ref. Bindings inside nested scopes do
// not count; their variables are invisible here.
func bindingInScope(doc *Document, scope *sitter.Node, name string, ref *sitter.Node) *sitter.Node {
	if nameNode := paramBinding(doc, scope, name); nameNode != nil {
		return nameNode
	}
	return assignmentBinding(doc, scope, name, ref)
}

// paramBinding matches name against the scope's parameter list, if it has
// one.
func paramBinding(doc *Document, scope *sitter.Node, name string) *sitter.Node {
	params := scope.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		nameNode := p
		if p.Type() != "identifier" {
			nameNode = p.ChildByFieldName("name")
		}
		if nameNode != nil && nameNode.Content(doc.Source) == name {
			return nameNode
		}
	}
	return nil
}

// assignmentBinding walks scope's subtree in source order looking for
// `name = ...`, descending past expression structure but never into nested
// scopes.
func assignmentBinding(doc *Document, node *sitter.Node, name string, ref *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.StartByte() > ref.EndByte() {
			return nil
		}
		if isHardScope(child.Type()) || isSoftScope(child.Type()) {
			continue
		}
		if child.Type() == "assignment" {
			if left := child.ChildByFieldName("left"); left != nil &&
				left.Type() == "identifier" && left.Content(doc.Source) == name {
				return left
			}
		}
		if found := assignmentBinding(doc, child, name, ref); found != nil {
			return found
		}
	}
	return nil
}

// localOccurrences returns every identifier in the binding's document that
// resolves back to this binding, in source order. The binding itself is
// included.
func localOccurrences(b *LocalBinding) []protocol.Location {
	var locs []protocol.Location
	collectLocalRefs(b, b.scope, &locs)
	return locs
}

func collectLocalRefs(b *LocalBinding, node *sitter.Node, locs *[]protocol.Location) {
	if node.Type() == "identifier" && node.Content(b.doc.Source) == b.VarName {
		if !isMethodNamePosition(node) {
			if ref := findLocalBinding(b.doc, node); ref != nil && ref.Rng == b.Rng {
				*locs = append(*locs, protocol.Location{URI: b.DocURI, Range: parse.NodeRange(node)})
			}
		}
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		collectLocalRefs(b, node.NamedChild(i), locs)
	}
}

// isMethodNamePosition reports whether an identifier is a method name (call
// target or definition name) rather than a variable read.
func isMethodNamePosition(node *sitter.Node) bool {
	p := node.Parent()
	if p == nil {
		return false
	}
	switch p.Type() {
	case "call":
		return sameNode(p.ChildByFieldName("method"), node)
	case "method", "singleton_method":
		return sameNode(p.ChildByFieldName("name"), node)
	}
	return false
}
