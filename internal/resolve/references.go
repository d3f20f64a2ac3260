package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.lsp.dev/protocol"

	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/parse"
)

// FindReferences enumerates every occurrence of decl across the workspace's
// current sources, open buffers included. Results are ordered by URI, then
// by position within each document. With includeDeclaration false the
// declaration name tokens themselves are dropped.
func (r *Resolver) FindReferences(ctx context.Context, decl Declaration, includeDeclaration bool) ([]protocol.Location, error) {
	if b, ok := decl.(*LocalBinding); ok {
		locs := localOccurrences(b)
		if !includeDeclaration {
			locs = dropRanges(locs, map[protocol.Location]bool{
				{URI: b.DocURI, Range: b.Rng}: true,
			})
		}
		return locs, nil
	}

	e, ok := decl.(entry.Entry)
	if !ok {
		return nil, fmt.Errorf("resolve: unsupported declaration %T", decl)
	}

	sources, err := r.loader.WorkspaceSources()
	if err != nil {
		return nil, fmt.Errorf("resolve: load sources: %w", err)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].URI < sources[j].URI })

	var locs []protocol.Location
	for _, src := range sources {
		doc, err := NewDocument(ctx, src.URI, src.Text)
		if err != nil {
			return nil, fmt.Errorf("resolve: %s: %w", src.URI, err)
		}
		switch d := e.(type) {
		case *entry.Namespace:
			r.constantRefs(doc, d.Name(), &locs)
		case *entry.Constant:
			r.constantRefs(doc, d.Name(), &locs)
		case *entry.Method:
			r.methodRefs(doc, d, &locs)
		default:
			return nil, fmt.Errorf("resolve: unsupported entry %T", e)
		}
	}

	if !includeDeclaration {
		locs = dropRanges(locs, r.declarationRanges(e))
	}
	sortLocations(locs)
	return locs, nil
}

// declarationRanges is the set of name-token locations where the entry's
// name is declared, covering every reopening.
func (r *Resolver) declarationRanges(e entry.Entry) map[protocol.Location]bool {
	out := make(map[protocol.Location]bool)
	for _, decl := range r.index.EntriesFor(e.Name()) {
		out[protocol.Location{URI: decl.URI(), Range: decl.SelectionRange()}] = true
	}
	return out
}

func dropRanges(locs []protocol.Location, drop map[protocol.Location]bool) []protocol.Location {
	out := locs[:0]
	for _, loc := range locs {
		if !drop[loc] {
			out = append(out, loc)
		}
	}
	return out
}

// constantRefs collects every constant token in doc that resolves to target
// through the lexical nesting at its position. Only the token itself is
// recorded, so a rename touches `Bar` in `Foo::Bar` without disturbing the
// qualifier.
func (r *Resolver) constantRefs(doc *Document, target string, locs *[]protocol.Location) {
	walkTree(doc.Root, func(node *sitter.Node) {
		if node.Type() != "constant" {
			return
		}
		written := writtenConstant(doc, node)
		fq, found := r.index.ConstantNameAt(nestingAt(doc, node), written)
		if found && fq == target {
			*locs = append(*locs, protocol.Location{URI: doc.URI, Range: parse.NodeRange(node)})
		}
	})
}

// methodRefs collects call sites, definition names, and alias sources that
// refer to the target method. Calls whose receiver type cannot be
// established degrade to a name match; calls that resolve to a different
// owner are excluded.
func (r *Resolver) methodRefs(doc *Document, m *entry.Method, locs *[]protocol.Location) {
	walkTree(doc.Root, func(node *sitter.Node) {
		switch node.Type() {
		case "identifier":
			if node.Content(doc.Source) != m.MethodName {
				return
			}
			parent := node.Parent()
			switch {
			case parent != nil && parent.Type() == "call" && sameNode(parent.ChildByFieldName("method"), node):
				if r.callMatches(doc, node, parent, m) {
					*locs = append(*locs, protocol.Location{URI: doc.URI, Range: parse.NodeRange(node)})
				}
			case parent != nil && isMethodDef(parent) && sameNode(parent.ChildByFieldName("name"), node):
				if d := r.declarationForDef(doc, node, parent); sameMethod(d, m) {
					*locs = append(*locs, protocol.Location{URI: doc.URI, Range: parse.NodeRange(node)})
				}
			case parent != nil && parent.Type() == "alias":
				// Handled by the alias case below.
			default:
				// Bare identifier: a receiverless call unless it reads a local.
				if findLocalBinding(doc, node) != nil || isMethodNamePosition(node) {
					return
				}
				if d, err := r.resolveReceiverlessCall(doc, node); err == nil && sameMethod(d, m) {
					*locs = append(*locs, protocol.Location{URI: doc.URI, Range: parse.NodeRange(node)})
				}
			}
		case "alias":
			if old := node.NamedChild(1); old != nil && old.Content(doc.Source) == m.MethodName &&
				ownerAt(doc, node) == m.Owner {
				*locs = append(*locs, protocol.Location{URI: doc.URI, Range: parse.NodeRange(old)})
			}
		case "call":
			r.aliasMethodOldName(doc, node, m, locs)
		}
	})
}

// aliasMethodOldName records the old-name symbol of `alias_method :new, :old`
// when it refers to m. The range covers the text after the colon so a rename
// keeps the symbol form.
func (r *Resolver) aliasMethodOldName(doc *Document, call *sitter.Node, m *entry.Method, locs *[]protocol.Location) {
	mth := call.ChildByFieldName("method")
	if mth == nil || mth.Content(doc.Source) != "alias_method" {
		return
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 2 {
		return
	}
	old := args.NamedChild(1)
	if old.Type() != "simple_symbol" ||
		strings.TrimPrefix(old.Content(doc.Source), ":") != m.MethodName ||
		ownerAt(doc, call) != m.Owner {
		return
	}
	rng := parse.NodeRange(old)
	rng.Start.Character++
	*locs = append(*locs, protocol.Location{URI: doc.URI, Range: rng})
}

// callMatches reports whether a call site refers to m.
func (r *Resolver) callMatches(doc *Document, nameNode, call *sitter.Node, m *entry.Method) bool {
	d, err := r.resolveCall(doc, nameNode, call)
	if err == nil && d != nil {
		return sameMethod(d, m)
	}

	// No definite resolution. Degrade to a name match only when the receiver
	// type is genuinely unknown; a known owner chain without the method is a
	// real non-match.
	recv := call.ChildByFieldName("receiver")
	switch {
	case recv == nil || recv.Type() == "self":
		return false
	case recv.Type() == "constant" || recv.Type() == "scope_resolution":
		return false
	case recv.Type() == "identifier" || recv.Type() == "instance_variable":
		guess := camelize(strings.TrimPrefix(recv.Content(doc.Source), "@"))
		return r.index.Get(guess) == nil
	}
	return true
}

func sameMethod(d Declaration, m *entry.Method) bool {
	rm, ok := d.(*entry.Method)
	return ok && rm.Owner == m.Owner && rm.MethodName == m.MethodName && rm.Kind == m.Kind
}

// walkTree visits every named node in pre-order.
func walkTree(node *sitter.Node, fn func(*sitter.Node)) {
	fn(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walkTree(node.NamedChild(i), fn)
	}
}
