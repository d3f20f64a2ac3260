package index

import (
	"github.com/rubicon-ls/rubicon/internal/entry"
)

// LinearizedAncestors computes the method-resolution order for a namespace:
// prepended modules first (later declarations take precedence), then the
// namespace itself, then included modules (again later-first), then the
// superclass chain. Mixins declared across reopened definitions merge in
// indexing order before linearization.
//
// A cycle truncates the walk; the longest acyclic prefix is returned
// together with a *CircularAncestryError so callers degrade instead of
// crashing.
func (ix *Index) LinearizedAncestors(name string) ([]string, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.linearizedAncestorsLocked(name)
}

func (ix *Index) linearizedAncestorsLocked(name string) ([]string, error) {
	lin := &linearizer{ix: ix, seen: make(map[string]bool), onPath: make(map[string]bool)}
	lin.visit(name)
	if lin.cyclic {
		return lin.order, &CircularAncestryError{Name: name, Partial: lin.order}
	}
	return lin.order, nil
}

// linearizer carries the state of one linearization walk. seen deduplicates
// (first occurrence wins); onPath detects cycles on the current descent.
type linearizer struct {
	ix     *Index
	order  []string
	seen   map[string]bool
	onPath map[string]bool
	cyclic bool
}

func (l *linearizer) visit(name string) {
	if l.onPath[name] {
		l.cyclic = true
		return
	}
	if l.seen[name] {
		return
	}
	l.onPath[name] = true
	defer delete(l.onPath, name)

	prepends, includes, superclass := l.mixinsOf(name)

	// Later prepend declarations sit closer to the front of the chain.
	for i := len(prepends) - 1; i >= 0; i-- {
		l.visit(prepends[i])
	}
	if !l.seen[name] {
		l.seen[name] = true
		l.order = append(l.order, name)
	}
	for i := len(includes) - 1; i >= 0; i-- {
		l.visit(includes[i])
	}
	if superclass != "" {
		l.visit(superclass)
	}
}

// mixinsOf merges the mixin lists of every entry indexed under name and
// resolves their written names against the declaration-site nesting. The
// last declared superclass wins. extend edges alter the singleton class,
// not the instance chain, so they are skipped here.
func (l *linearizer) mixinsOf(name string) (prepends, includes []string, superclass string) {
	for _, e := range l.ix.entries[name] {
		ns, ok := e.(*entry.Namespace)
		if !ok {
			continue
		}
		for _, ref := range ns.Mixins {
			resolved, _ := l.ix.constantNameLocked(ref.Nesting, ref.Name)
			switch ref.Operator {
			case entry.Prepend:
				prepends = append(prepends, resolved)
			case entry.Include:
				includes = append(includes, resolved)
			case entry.Superclass:
				superclass = resolved
			}
		}
	}
	return prepends, includes, superclass
}
