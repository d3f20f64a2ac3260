package index

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"go.lsp.dev/uri"

	"github.com/rubicon-ls/rubicon/internal/dispatch"
	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/parse"
)

// declarationListener extracts declarations from one document in a single
// dispatched walk. It tracks the open namespace stack, the visibility
// modifier currently in effect, `class << self` regions, and the trailing
// comment run for doc-comment attachment.
type declarationListener struct {
	uri       uri.URI
	src       []byte
	inProject bool
	entries   []entry.Entry

	nesting  []string
	nsDepths []int // segments pushed per open namespace, for exit pops
	nsStack  []*entry.Namespace
	visStack []entry.Visibility

	singletonDepth int

	comments   []string
	commentEnd int
}

func newDeclarationListener(u uri.URI, src []byte, inProject bool) *declarationListener {
	return &declarationListener{
		uri:        u,
		src:        src,
		inProject:  inProject,
		visStack:   []entry.Visibility{entry.Public},
		commentEnd: -2,
	}
}

func (l *declarationListener) register(d *dispatch.Dispatcher) {
	d.Register(l,
		"class", "module", "singleton_class",
		"method", "singleton_method",
		"assignment", "call", "alias",
		"identifier", "comment",
	)
}

func (l *declarationListener) text(node *sitter.Node) string {
	return node.Content(l.src)
}

func (l *declarationListener) Enter(node *sitter.Node) {
	switch node.Type() {
	case "comment":
		l.enterComment(node)
	case "class":
		l.enterNamespace(node, entry.KindClass)
	case "module":
		l.enterNamespace(node, entry.KindModule)
	case "singleton_class":
		if v := node.ChildByFieldName("value"); v != nil && v.Type() == "self" {
			l.singletonDepth++
		}
	case "method":
		l.enterMethod(node, node.ChildByFieldName("name"), l.methodKind())
	case "singleton_method":
		l.enterMethod(node, node.ChildByFieldName("name"), entry.Singleton)
	case "assignment":
		l.enterAssignment(node)
	case "call":
		l.enterCall(node)
	case "alias":
		l.enterAlias(node)
	case "identifier":
		l.enterBareIdentifier(node)
	}
}

func (l *declarationListener) Exit(node *sitter.Node) {
	switch node.Type() {
	case "class", "module":
		if len(l.nsDepths) == 0 {
			return
		}
		pop := l.nsDepths[len(l.nsDepths)-1]
		l.nsDepths = l.nsDepths[:len(l.nsDepths)-1]
		l.nesting = l.nesting[:len(l.nesting)-pop]
		l.nsStack = l.nsStack[:len(l.nsStack)-1]
		l.visStack = l.visStack[:len(l.visStack)-1]
	case "singleton_class":
		if v := node.ChildByFieldName("value"); v != nil && v.Type() == "self" {
			l.singletonDepth--
		}
	}
}

func (l *declarationListener) methodKind() entry.MethodKind {
	if l.singletonDepth > 0 {
		return entry.Singleton
	}
	return entry.Instance
}

// ownerName is the fully-qualified name methods and constants attach to.
// Top-level definitions belong to Object.
func (l *declarationListener) ownerName() string {
	if len(l.nesting) == 0 {
		return "Object"
	}
	return entry.Join(l.nesting)
}

func (l *declarationListener) enterComment(node *sitter.Node) {
	row := int(node.StartPoint().Row)
	line := strings.TrimPrefix(strings.TrimPrefix(l.text(node), "#"), " ")
	if row != l.commentEnd+1 {
		l.comments = l.comments[:0]
	}
	l.comments = append(l.comments, line)
	l.commentEnd = int(node.EndPoint().Row)
}

// docFor returns the comment run immediately above row, if contiguous.
func (l *declarationListener) docFor(row uint32) string {
	if len(l.comments) == 0 || l.commentEnd != int(row)-1 {
		return ""
	}
	return strings.TrimSpace(strings.Join(l.comments, "\n"))
}

func (l *declarationListener) enterNamespace(node *sitter.Node, kind entry.NamespaceKind) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// Still push a frame so Exit stays balanced on broken source.
		l.nsDepths = append(l.nsDepths, 0)
		l.nsStack = append(l.nsStack, nil)
		l.visStack = append(l.visStack, entry.Public)
		return
	}

	// The superclass expression is evaluated in the enclosing scope, so its
	// nesting snapshot excludes the class being opened.
	outerNesting := append([]string(nil), l.nesting...)

	segments := strings.Split(l.text(nameNode), "::")
	l.nesting = append(l.nesting, segments...)

	ns := &entry.Namespace{
		Base: entry.Base{
			FQName:    entry.Join(l.nesting),
			DocURI:    l.uri,
			Range:     parse.NodeRange(node),
			NameRange: parse.NodeRange(nameNode),
			Doc:       l.docFor(node.StartPoint().Row),
			Project:   l.inProject,
		},
		Kind: kind,
	}
	if sup := node.ChildByFieldName("superclass"); sup != nil {
		if target := namedConstantChild(sup); target != nil {
			ns.Mixins = append(ns.Mixins, entry.MixinRef{
				Operator: entry.Superclass,
				Name:     l.text(target),
				Nesting:  outerNesting,
			})
		}
	}

	l.entries = append(l.entries, ns)
	l.nsDepths = append(l.nsDepths, len(segments))
	l.nsStack = append(l.nsStack, ns)
	l.visStack = append(l.visStack, entry.Public)
}

// namedConstantChild digs the constant expression out of a wrapper node
// such as `superclass`.
func namedConstantChild(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		c := node.NamedChild(i)
		if c.Type() == "constant" || c.Type() == "scope_resolution" {
			return c
		}
	}
	return nil
}

func (l *declarationListener) enterMethod(node, nameNode *sitter.Node, kind entry.MethodKind) {
	if nameNode == nil {
		return
	}
	name := l.text(nameNode)
	owner := l.ownerName()
	m := &entry.Method{
		Base: entry.Base{
			FQName:    entry.MethodFQName(owner, name, kind),
			DocURI:    l.uri,
			Range:     parse.NodeRange(node),
			NameRange: parse.NodeRange(nameNode),
			Doc:       l.docFor(node.StartPoint().Row),
			Project:   l.inProject,
		},
		Owner:      owner,
		MethodName: name,
		Kind:       kind,
		Visibility: l.methodVisibility(node),
		Parameters: l.parameters(node.ChildByFieldName("parameters")),
	}
	l.entries = append(l.entries, m)
}

// methodVisibility handles both the modifier-in-effect form
// (`private` on its own line) and the inline form (`private def foo`).
func (l *declarationListener) methodVisibility(node *sitter.Node) entry.Visibility {
	for p := node.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "argument_list":
			if call := p.Parent(); call != nil && call.Type() == "call" {
				if m := call.ChildByFieldName("method"); m != nil {
					if vis, ok := visibilityName(l.text(m)); ok {
						return vis
					}
				}
			}
		case "class", "module", "method", "program":
			return l.visStack[len(l.visStack)-1]
		}
	}
	return l.visStack[len(l.visStack)-1]
}

func visibilityName(s string) (entry.Visibility, bool) {
	switch s {
	case "private":
		return entry.Private, true
	case "protected":
		return entry.Protected, true
	case "public":
		return entry.Public, true
	}
	return "", false
}

func (l *declarationListener) parameters(params *sitter.Node) []entry.Parameter {
	if params == nil {
		return nil
	}
	var out []entry.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "identifier":
			out = append(out, entry.Parameter{Name: l.text(p), Kind: entry.ParamRequired})
		case "optional_parameter":
			out = append(out, entry.Parameter{Name: l.fieldText(p, "name"), Kind: entry.ParamOptional})
		case "keyword_parameter":
			out = append(out, entry.Parameter{Name: l.fieldText(p, "name"), Kind: entry.ParamKeyword})
		case "splat_parameter":
			out = append(out, entry.Parameter{Name: l.fieldText(p, "name"), Kind: entry.ParamRest})
		case "hash_splat_parameter":
			out = append(out, entry.Parameter{Name: l.fieldText(p, "name"), Kind: entry.ParamKeywordRest})
		case "block_parameter":
			out = append(out, entry.Parameter{Name: l.fieldText(p, "name"), Kind: entry.ParamBlock})
		}
	}
	return out
}

func (l *declarationListener) fieldText(node *sitter.Node, field string) string {
	if c := node.ChildByFieldName(field); c != nil {
		return l.text(c)
	}
	return ""
}

func (l *declarationListener) enterAssignment(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	if left == nil {
		return
	}
	var nameNode *sitter.Node
	switch left.Type() {
	case "constant":
		nameNode = left
	case "scope_resolution":
		if n := left.ChildByFieldName("name"); n != nil && n.Type() == "constant" {
			nameNode = left
		}
	}
	if nameNode == nil {
		return
	}
	fq := l.text(nameNode)
	if !strings.HasPrefix(fq, "::") && len(l.nesting) > 0 {
		fq = entry.Join(l.nesting) + "::" + fq
	}
	fq = strings.TrimPrefix(fq, "::")
	l.entries = append(l.entries, &entry.Constant{
		Base: entry.Base{
			FQName:    fq,
			DocURI:    l.uri,
			Range:     parse.NodeRange(node),
			NameRange: parse.NodeRange(nameNode),
			Doc:       l.docFor(node.StartPoint().Row),
			Project:   l.inProject,
		},
		Visibility: entry.Public,
	})
}

func (l *declarationListener) enterCall(node *sitter.Node) {
	methodNode := node.ChildByFieldName("method")
	if methodNode == nil {
		return
	}
	// DSL-style calls only count without an explicit receiver (or on self).
	if recv := node.ChildByFieldName("receiver"); recv != nil && recv.Type() != "self" {
		return
	}
	args := node.ChildByFieldName("arguments")

	switch l.text(methodNode) {
	case "include":
		l.appendMixins(entry.Include, args)
	case "prepend":
		l.appendMixins(entry.Prepend, args)
	case "extend":
		l.appendMixins(entry.Extend, args)
	case "attr_reader":
		l.declareAccessors(args, true, false)
	case "attr_writer":
		l.declareAccessors(args, false, true)
	case "attr_accessor":
		l.declareAccessors(args, true, true)
	case "alias_method":
		l.declareAliasMethod(node, args)
	case "private":
		l.markVisibility(args, entry.Private)
	case "protected":
		l.markVisibility(args, entry.Protected)
	case "public":
		l.markVisibility(args, entry.Public)
	case "private_constant":
		l.markConstantsPrivate(args)
	}
}

func (l *declarationListener) appendMixins(op entry.MixinOperator, args *sitter.Node) {
	if args == nil || len(l.nsStack) == 0 {
		return
	}
	ns := l.nsStack[len(l.nsStack)-1]
	if ns == nil {
		return
	}
	nesting := append([]string(nil), l.nesting...)
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "constant" && arg.Type() != "scope_resolution" {
			continue
		}
		ns.Mixins = append(ns.Mixins, entry.MixinRef{
			Operator: op,
			Name:     l.text(arg),
			Nesting:  nesting,
		})
	}
}

// symbolArg is one simple symbol argument (:foo) with its node.
type symbolArg struct {
	name string
	node *sitter.Node
}

// symbolArgs collects the bare names of simple symbol arguments.
func (l *declarationListener) symbolArgs(args *sitter.Node) []symbolArg {
	if args == nil {
		return nil
	}
	var out []symbolArg
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "simple_symbol" {
			continue
		}
		out = append(out, symbolArg{name: strings.TrimPrefix(l.text(arg), ":"), node: arg})
	}
	return out
}

func (l *declarationListener) declareAccessors(args *sitter.Node, reader, writer bool) {
	owner := l.ownerName()
	for _, sym := range l.symbolArgs(args) {
		names := make([]string, 0, 2)
		if reader {
			names = append(names, sym.name)
		}
		if writer {
			names = append(names, sym.name+"=")
		}
		for _, name := range names {
			l.entries = append(l.entries, &entry.Method{
				Base: entry.Base{
					FQName:    entry.MethodFQName(owner, name, entry.Instance),
					DocURI:    l.uri,
					Range:     parse.NodeRange(sym.node),
					NameRange: parse.NodeRange(sym.node),
					Project:   l.inProject,
				},
				Owner:      owner,
				MethodName: name,
				Kind:       entry.Accessor,
				Visibility: l.visStack[len(l.visStack)-1],
			})
		}
	}
}

func (l *declarationListener) declareAliasMethod(call, args *sitter.Node) {
	syms := l.symbolArgs(args)
	if len(syms) != 2 {
		return
	}
	l.declareAlias(call, syms[0].node, syms[0].name, syms[1].name)
}

func (l *declarationListener) enterAlias(node *sitter.Node) {
	if node.NamedChildCount() < 2 {
		return
	}
	newName := node.NamedChild(0)
	oldName := node.NamedChild(1)
	l.declareAlias(node, newName,
		strings.TrimPrefix(l.text(newName), ":"),
		strings.TrimPrefix(l.text(oldName), ":"))
}

// declareAlias records an unresolved alias entry; the index follows the
// chain lazily at lookup time.
func (l *declarationListener) declareAlias(decl, nameNode *sitter.Node, newName, oldName string) {
	owner := l.ownerName()
	kind := l.methodKind()
	l.entries = append(l.entries, &entry.Method{
		Base: entry.Base{
			FQName:    entry.MethodFQName(owner, newName, kind),
			DocURI:    l.uri,
			Range:     parse.NodeRange(decl),
			NameRange: parse.NodeRange(nameNode),
			Doc:       l.docFor(decl.StartPoint().Row),
			Project:   l.inProject,
		},
		Owner:       owner,
		MethodName:  newName,
		Kind:        kind,
		Visibility:  l.visStack[len(l.visStack)-1],
		AliasTarget: oldName,
	})
}

// markVisibility retro-marks already-declared methods named by symbol
// arguments (`private :foo, :bar`).
func (l *declarationListener) markVisibility(args *sitter.Node, vis entry.Visibility) {
	owner := l.ownerName()
	for _, sym := range l.symbolArgs(args) {
		for i := len(l.entries) - 1; i >= 0; i-- {
			if m, ok := l.entries[i].(*entry.Method); ok && m.Owner == owner && m.MethodName == sym.name {
				m.Visibility = vis
				break
			}
		}
	}
}

func (l *declarationListener) markConstantsPrivate(args *sitter.Node) {
	owner := l.ownerName()
	for _, sym := range l.symbolArgs(args) {
		fq := sym.name
		if owner != "Object" {
			fq = owner + "::" + sym.name
		}
		for i := len(l.entries) - 1; i >= 0; i-- {
			if c, ok := l.entries[i].(*entry.Constant); ok && c.FQName == fq {
				c.Visibility = entry.Private
				break
			}
		}
	}
}

// enterBareIdentifier flips the visibility modifier in effect when a lone
// `private`/`protected`/`public` statement appears in a namespace body.
func (l *declarationListener) enterBareIdentifier(node *sitter.Node) {
	parent := node.Parent()
	if parent == nil {
		return
	}
	if parent.Type() != "body_statement" && parent.Type() != "program" {
		return
	}
	if vis, ok := visibilityName(l.text(node)); ok {
		l.visStack[len(l.visStack)-1] = vis
	}
}
