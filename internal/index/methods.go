package index

import (
	"sort"

	"github.com/rubicon-ls/rubicon/internal/entry"
)

// ResolveMethod finds the concrete method entry a call to name on owner
// dispatches to, walking the owner's linearized ancestors and following
// alias chains to a bounded depth. Ancestry cycles degrade to the partial
// chain; alias cycles fail with *UnresolvableAliasError.
//
// A nil entry with nil error means no definition is known, the "no
// definite declaration" outcome for duck-typed receivers.
func (ix *Index) ResolveMethod(name, owner string) (*entry.Method, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// One lock for the whole query: the linearization and the lookups it
	// feeds see the same index state. The cyclic-ancestry prefix is still a
	// usable lookup chain.
	ancestors, _ := ix.linearizedAncestorsLocked(owner)

	for _, ancestor := range ancestors {
		m := ix.methodLocked(name, ancestor)
		if m == nil {
			continue
		}
		if !m.IsAlias() {
			return m, nil
		}
		return ix.resolveAliasLocked(m, ancestors)
	}
	return nil, nil
}

// ResolveSingletonMethod finds a class-level method, walking only the
// superclass chain (modules mixed in with include do not contribute
// singleton methods).
func (ix *Index) ResolveSingletonMethod(name, owner string) (*entry.Method, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ancestors, _ := ix.linearizedAncestorsLocked(owner)

	for _, ancestor := range ancestors {
		es := ix.entries[entry.MethodFQName(ancestor, name, entry.Singleton)]
		if len(es) == 0 {
			continue
		}
		if m, ok := es[len(es)-1].(*entry.Method); ok {
			if !m.IsAlias() {
				return m, nil
			}
			return ix.resolveAliasLocked(m, ancestors)
		}
	}
	return nil, nil
}

// methodLocked returns the most recently indexed instance method entry for
// name on exactly the given owner, or nil.
func (ix *Index) methodLocked(name, owner string) *entry.Method {
	es := ix.entries[entry.MethodFQName(owner, name, entry.Instance)]
	if len(es) == 0 {
		return nil
	}
	if m, ok := es[len(es)-1].(*entry.Method); ok {
		return m
	}
	return nil
}

// resolveAliasLocked follows an alias chain until a concrete entry. The
// target of each hop is looked up through the same ancestor chain, matching
// runtime dispatch for aliased methods. Cycles and chains longer than
// MaxAliasDepth fail with *UnresolvableAliasError.
func (ix *Index) resolveAliasLocked(m *entry.Method, ancestors []string) (*entry.Method, error) {
	seen := map[string]bool{m.MethodName: true}
	current := m
	for depth := 0; depth < MaxAliasDepth; depth++ {
		target := current.AliasTarget
		if seen[target] {
			return nil, &UnresolvableAliasError{Owner: m.Owner, Name: m.MethodName}
		}
		seen[target] = true

		var next *entry.Method
		for _, ancestor := range ancestors {
			if candidate := ix.methodLocked(target, ancestor); candidate != nil {
				next = candidate
				break
			}
		}
		if next == nil {
			return nil, &UnresolvableAliasError{Owner: m.Owner, Name: m.MethodName}
		}
		if !next.IsAlias() {
			return next, nil
		}
		current = next
	}
	return nil, &UnresolvableAliasError{Owner: m.Owner, Name: m.MethodName}
}

// MethodsForOwner returns the most recent entry of every method declared
// directly on owner (not on its ancestors), in name order.
func (ix *Index) MethodsForOwner(owner string) []*entry.Method {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []*entry.Method
	prefixHash := owner + "#"
	prefixDot := owner + "."
	for name, es := range ix.entries {
		if !hasOwnerPrefix(name, prefixHash) && !hasOwnerPrefix(name, prefixDot) {
			continue
		}
		if m, ok := es[len(es)-1].(*entry.Method); ok {
			out = append(out, m)
		}
	}
	sortMethods(out)
	return out
}

func hasOwnerPrefix(name, prefix string) bool {
	return len(name) > len(prefix) && name[:len(prefix)] == prefix
}

func sortMethods(ms []*entry.Method) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].MethodName < ms[j].MethodName })
}
