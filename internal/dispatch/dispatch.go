// Package dispatch runs one depth-first walk over a syntax tree and fans
// each node out to every listener that registered for its kind. N analyses
// share a single O(tree) traversal instead of N separate walks, which
// matters because trees are rebuilt on every keystroke-scale edit.
package dispatch

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Listener receives enter/exit callbacks for the node kinds it registered.
// Enter fires before the node's children are visited, Exit after.
type Listener interface {
	Enter(node *sitter.Node)
	Exit(node *sitter.Node)
}

// Dispatcher maps node kinds (tree-sitter type strings) to ordered listener
// lists. A Dispatcher is single-use per tree walk and not safe for
// concurrent use; nested dispatch from inside a callback is a programming
// error.
type Dispatcher struct {
	listeners map[string][]Listener
	walking   bool
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{listeners: make(map[string][]Listener)}
}

// Register subscribes listener to the given node kinds. Registration order
// is invocation order for listeners sharing a kind.
func (d *Dispatcher) Register(listener Listener, kinds ...string) {
	for _, kind := range kinds {
		d.listeners[kind] = append(d.listeners[kind], listener)
	}
}

// Dispatch walks the tree rooted at root once, depth-first, pre-order:
// enter before children, exit after children, siblings in source order.
// Listeners only see named nodes of kinds they registered for.
func (d *Dispatcher) Dispatch(root *sitter.Node) {
	if d.walking {
		panic("dispatch: nested Dispatch call")
	}
	d.walking = true
	defer func() { d.walking = false }()

	d.walk(root)
}

func (d *Dispatcher) walk(node *sitter.Node) {
	// Anonymous tokens share their keyword's type string (the bare "class"
	// token inside a class declaration), so only named nodes dispatch.
	var subs []Listener
	if node.IsNamed() {
		subs = d.listeners[node.Type()]
	}
	for _, l := range subs {
		l.Enter(node)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		d.walk(node.Child(i))
	}
	// Exit in reverse registration order so listeners unwind like a stack.
	for i := len(subs) - 1; i >= 0; i-- {
		subs[i].Exit(node)
	}
}

// Funcs adapts plain functions to the Listener interface for callers that
// do not need struct state.
type Funcs struct {
	OnEnter func(node *sitter.Node)
	OnExit  func(node *sitter.Node)
}

func (f Funcs) Enter(node *sitter.Node) {
	if f.OnEnter != nil {
		f.OnEnter(node)
	}
}

func (f Funcs) Exit(node *sitter.Node) {
	if f.OnExit != nil {
		f.OnExit(node)
	}
}
