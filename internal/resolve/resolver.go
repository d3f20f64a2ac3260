// Package resolve maps cursor positions to declarations and enumerates
// every other occurrence of a declaration across the workspace, including
// unsaved buffers. It also builds all-or-nothing rename plans with conflict
// detection.
package resolve

import (
	"context"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/index"
	"github.com/rubicon-ls/rubicon/internal/parse"
)

// Document is one parsed buffer a query runs against. The tree borrows
// Source, so both travel together.
type Document struct {
	URI    uri.URI
	Source []byte
	Root   *sitter.Node
}

// NewDocument parses source into a query-ready document. Parse errors
// degrade to a partial tree; resolution works with whatever parsed.
func NewDocument(ctx context.Context, u uri.URI, source []byte) (*Document, error) {
	res, err := parse.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	return &Document{URI: u, Source: source, Root: res.Root()}, nil
}

// FileSource is one unit of workspace text: an on-disk file or an open
// buffer overlaying it.
type FileSource struct {
	URI  uri.URI
	Text []byte
}

// Loader supplies every source the workspace currently knows about, open
// buffers included. Implemented by the Workspace; tests use a map-backed
// fake.
type Loader interface {
	WorkspaceSources() ([]FileSource, error)
}

// Declaration is anything a cursor can resolve to: an indexed entry or a
// document-local variable binding.
type Declaration interface {
	Name() string
	Location() protocol.Location
}

// LocalBinding is a local variable's introducing binding (assignment,
// parameter, or block argument). Locals never leak past their document.
type LocalBinding struct {
	VarName string
	DocURI  uri.URI
	Rng     protocol.Range

	doc   *Document
	scope *sitter.Node
}

func (b *LocalBinding) Name() string { return b.VarName }

func (b *LocalBinding) Location() protocol.Location {
	return protocol.Location{URI: b.DocURI, Range: b.Rng}
}

// Resolver answers declaration and occurrence queries against the Index
// and the workspace's sources.
type Resolver struct {
	index  *index.Index
	loader Loader
}

// New creates a Resolver over the given index and source loader.
func New(ix *index.Index, loader Loader) *Resolver {
	return &Resolver{index: ix, loader: loader}
}

// Locate returns the innermost named node enclosing pos and its syntactic
// parent. Either may be nil when pos falls outside the tree.
func (r *Resolver) Locate(doc *Document, pos protocol.Position) (node, parent *sitter.Node) {
	node = parse.NodeAt(doc.Root, pos)
	if node == nil {
		return nil, nil
	}
	return node, node.Parent()
}

// FindDeclaration classifies the target under pos and resolves it to a
// declaration. A nil Declaration with nil error is the normal "nothing
// there" outcome (keyword, literal, unknown receiver).
func (r *Resolver) FindDeclaration(doc *Document, pos protocol.Position) (Declaration, error) {
	node, parent := r.Locate(doc, pos)
	if node == nil {
		return nil, nil
	}

	switch node.Type() {
	case "constant":
		return r.resolveConstant(doc, node), nil
	case "identifier":
		if parent != nil && parent.Type() == "call" && sameNode(parent.ChildByFieldName("method"), node) {
			return r.resolveCall(doc, node, parent)
		}
		if parent != nil && isMethodDef(parent) && sameNode(parent.ChildByFieldName("name"), node) {
			return r.declarationForDef(doc, node, parent), nil
		}
		if binding := findLocalBinding(doc, node); binding != nil {
			return binding, nil
		}
		// Receiverless call written without arguments parses as a bare
		// identifier; fall back to method resolution.
		return r.resolveReceiverlessCall(doc, node)
	}
	return nil, nil
}

// resolveConstant resolves a constant reference through the lexical
// nesting, mirroring static constant lookup.
func (r *Resolver) resolveConstant(doc *Document, node *sitter.Node) Declaration {
	written := writtenConstant(doc, node)
	nesting := nestingAt(doc, node)
	fq, found := r.index.ConstantNameAt(nesting, written)
	if !found {
		return nil
	}
	if e := r.index.Get(fq); e != nil {
		return e
	}
	return nil
}

// resolveCall resolves an explicit method call. Receiver handling follows
// the duck-typing design: a set of candidate owners that may be empty, in
// which case the outcome is "no definite declaration", not a guess.
func (r *Resolver) resolveCall(doc *Document, nameNode, call *sitter.Node) (Declaration, error) {
	name := nameNode.Content(doc.Source)
	recv := call.ChildByFieldName("receiver")

	switch {
	case recv == nil || recv.Type() == "self":
		return declOrNil(r.index.ResolveMethod(name, ownerAt(doc, nameNode)))

	case recv.Type() == "constant" || recv.Type() == "scope_resolution":
		fq, found := r.index.ConstantNameAt(nestingAt(doc, recv), writtenConstant(doc, recv))
		if !found {
			return nil, nil
		}
		if m, err := r.index.ResolveSingletonMethod(name, fq); err != nil || m != nil {
			return declOrNil(m, err)
		}
		// Foo.new dispatches to Foo#initialize.
		if name == "new" {
			return declOrNil(r.index.ResolveMethod("initialize", fq))
		}
		return nil, nil

	case recv.Type() == "identifier" || recv.Type() == "instance_variable":
		// Best-effort guessed type: a receiver named `article` is assumed
		// to be an Article if such a namespace exists.
		guess := camelize(strings.TrimPrefix(recv.Content(doc.Source), "@"))
		if r.index.Get(guess) == nil {
			return nil, nil
		}
		return declOrNil(r.index.ResolveMethod(name, guess))
	}
	return nil, nil
}

func (r *Resolver) resolveReceiverlessCall(doc *Document, node *sitter.Node) (Declaration, error) {
	return declOrNil(r.index.ResolveMethod(node.Content(doc.Source), ownerAt(doc, node)))
}

// declarationForDef maps a definition's own name token back to its entry.
func (r *Resolver) declarationForDef(doc *Document, nameNode, def *sitter.Node) Declaration {
	kind := entry.Instance
	if def.Type() == "singleton_method" || insideSelfSingleton(def) {
		kind = entry.Singleton
	}
	fq := entry.MethodFQName(ownerAt(doc, def), nameNode.Content(doc.Source), kind)
	if e := r.index.Get(fq); e != nil {
		return e
	}
	return nil
}

func declOrNil(m *entry.Method, err error) (Declaration, error) {
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	return m, nil
}

// sameNode compares nodes by identity in the tree.
func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func isMethodDef(node *sitter.Node) bool {
	return node.Type() == "method" || node.Type() == "singleton_method"
}

// insideSelfSingleton reports whether node sits inside a `class << self`
// region.
func insideSelfSingleton(node *sitter.Node) bool {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "singleton_class":
			if v := p.ChildByFieldName("value"); v != nil && v.Type() == "self" {
				return true
			}
		case "method", "singleton_method", "class", "module":
			return false
		}
	}
	return false
}

// writtenConstant returns the reference as written, widening a constant
// token to its enclosing scope-resolution prefix (cursor on Bar in
// Foo::Bar resolves Foo::Bar, not bare Bar).
func writtenConstant(doc *Document, node *sitter.Node) string {
	if p := node.Parent(); p != nil && p.Type() == "scope_resolution" && sameNode(p.ChildByFieldName("name"), node) {
		return p.Content(doc.Source)
	}
	return node.Content(doc.Source)
}

// nestingAt collects the enclosing namespace names at node, outermost
// first. A namespace whose own name token contains node does not count as
// enclosing it (the cursor is on the declaration, not inside the body), and
// neither does one whose superclass expression contains node: the
// superclass is evaluated in the enclosing scope.
func nestingAt(doc *Document, node *sitter.Node) []string {
	var segments []string
	for p := node.Parent(); p != nil; p = p.Parent() {
		if p.Type() != "class" && p.Type() != "module" {
			continue
		}
		nameNode := p.ChildByFieldName("name")
		if nameNode == nil || contains(nameNode, node) {
			continue
		}
		if sup := p.ChildByFieldName("superclass"); sup != nil && contains(sup, node) {
			continue
		}
		segments = append(strings.Split(nameNode.Content(doc.Source), "::"), segments...)
	}
	return segments
}

// ownerAt is the fully-qualified owner for methods declared at node's
// position; Object at top level.
func ownerAt(doc *Document, node *sitter.Node) string {
	nesting := nestingAt(doc, node)
	if len(nesting) == 0 {
		return "Object"
	}
	return entry.Join(nesting)
}

func contains(outer, inner *sitter.Node) bool {
	return inner.StartByte() >= outer.StartByte() && inner.EndByte() <= outer.EndByte()
}

// camelize converts snake_case to CamelCase for receiver type guessing.
func camelize(s string) string {
	parts := strings.Split(s, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}

// sortLocations orders locations by URI, then source position. Every query
// that returns locations promises this order.
func sortLocations(locs []protocol.Location) {
	sort.Slice(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if a.URI != b.URI {
			return a.URI < b.URI
		}
		if a.Range.Start.Line != b.Range.Start.Line {
			return a.Range.Start.Line < b.Range.Start.Line
		}
		return a.Range.Start.Character < b.Range.Start.Character
	})
}
