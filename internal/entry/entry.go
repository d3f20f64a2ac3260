// Package entry defines the declaration records the index stores: namespaces
// (classes and modules), methods, and constants, together with the mixin
// relations that feed ancestor linearization. Entries are pure data; all
// behavior lives in the index and resolver.
package entry

import (
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// Visibility of a method or constant.
type Visibility string

const (
	Public    Visibility = "public"
	Private   Visibility = "private"
	Protected Visibility = "protected"
)

// MixinOperator tags how a namespace pulls in another namespace.
type MixinOperator string

const (
	Superclass MixinOperator = "superclass"
	Include    MixinOperator = "include"
	Prepend    MixinOperator = "prepend"
	Extend     MixinOperator = "extend"
)

// MixinRef is one ancestry edge as written in source. Name may be relative;
// Nesting records the lexical nesting at the declaration site so the index
// can resolve it lazily.
type MixinRef struct {
	Operator MixinOperator
	Name     string
	Nesting  []string
}

// ParamKind classifies a method parameter.
type ParamKind string

const (
	ParamRequired    ParamKind = "required"
	ParamOptional    ParamKind = "optional"
	ParamRest        ParamKind = "rest"
	ParamKeyword     ParamKind = "keyword"
	ParamKeywordRest ParamKind = "keyword_rest"
	ParamBlock       ParamKind = "block"
)

// Parameter is one entry of a method's ordered signature.
type Parameter struct {
	Name string
	Kind ParamKind
}

// Entry is one indexed declaration record. A fully-qualified name may map to
// several entries (reopened namespaces, monkey patches); the most recently
// indexed one is "the" declaration for navigation.
type Entry interface {
	// Name returns the fully-qualified name the entry is indexed under.
	Name() string
	// URI returns the declaring document. Empty for synthetic sources.
	URI() uri.URI
	// Location returns the full declaration range.
	Location() protocol.Location
	// SelectionRange returns the name-token range inside Location.
	SelectionRange() protocol.Range
	// Comments returns the attached doc comment, if any.
	Comments() string
	// InProject reports whether the declaring path is part of the workspace
	// (false for library and stdlib sources).
	InProject() bool
	// SymbolKind maps the entry onto the LSP symbol taxonomy.
	SymbolKind() protocol.SymbolKind
}

// Base carries the fields shared by all entry variants.
type Base struct {
	FQName    string
	DocURI    uri.URI
	Range     protocol.Range
	NameRange protocol.Range
	Doc       string
	Project   bool
}

func (b *Base) Name() string     { return b.FQName }
func (b *Base) URI() uri.URI     { return b.DocURI }
func (b *Base) Comments() string { return b.Doc }
func (b *Base) InProject() bool  { return b.Project }

func (b *Base) Location() protocol.Location {
	return protocol.Location{URI: b.DocURI, Range: b.Range}
}

func (b *Base) SelectionRange() protocol.Range { return b.NameRange }

// NamespaceKind distinguishes classes from modules.
type NamespaceKind string

const (
	KindClass  NamespaceKind = "class"
	KindModule NamespaceKind = "module"
)

// Namespace is a class or module declaration. Visibility is always public.
type Namespace struct {
	Base
	Kind   NamespaceKind
	Mixins []MixinRef
}

func (n *Namespace) SymbolKind() protocol.SymbolKind {
	if n.Kind == KindModule {
		return protocol.SymbolKindModule
	}
	return protocol.SymbolKindClass
}

// MethodKind classifies how a method is attached to its owner.
type MethodKind string

const (
	Instance  MethodKind = "instance"
	Singleton MethodKind = "singleton"
	Accessor  MethodKind = "accessor"
)

// Method is a method definition, an attr_* accessor, or an unresolved alias.
// FQName is "Owner#name" for instance methods and "Owner.name" for singleton
// methods; Owner alone is the owner's fully-qualified name.
type Method struct {
	Base
	Owner      string
	MethodName string
	Kind       MethodKind
	Visibility Visibility
	Parameters []Parameter
	// AliasTarget, when non-empty, marks the entry as an unresolved alias
	// pointing at another method of the same owner.
	AliasTarget string
}

func (m *Method) SymbolKind() protocol.SymbolKind {
	if m.Kind == Accessor {
		return protocol.SymbolKindProperty
	}
	return protocol.SymbolKindMethod
}

// IsAlias reports whether the method still points at a target by name.
func (m *Method) IsAlias() bool { return m.AliasTarget != "" }

// Constant is a constant declaration; only the declaration site is tracked.
type Constant struct {
	Base
	Visibility Visibility
}

func (c *Constant) SymbolKind() protocol.SymbolKind { return protocol.SymbolKindConstant }

// MethodFQName builds the index key for a method on an owner.
func MethodFQName(owner, name string, kind MethodKind) string {
	if kind == Singleton {
		return owner + "." + name
	}
	return owner + "#" + name
}

// Join concatenates nesting segments into a fully-qualified name.
func Join(nesting []string) string { return strings.Join(nesting, "::") }

// LastSegment returns the final "::"-separated component of a name.
func LastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
