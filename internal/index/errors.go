package index

import "fmt"

// CircularAncestryError reports a namespace whose ancestry cycles back into
// itself. Partial holds the longest acyclic prefix so callers can degrade
// gracefully instead of dropping the namespace entirely.
type CircularAncestryError struct {
	Name    string
	Partial []string
}

func (e *CircularAncestryError) Error() string {
	return fmt.Sprintf("circular ancestry detected for %s", e.Name)
}

// UnresolvableAliasError reports an alias chain that cycles or dead-ends
// before reaching a concrete method entry.
type UnresolvableAliasError struct {
	Owner string
	Name  string
}

func (e *UnresolvableAliasError) Error() string {
	return fmt.Sprintf("alias %s on %s cannot be resolved", e.Name, e.Owner)
}
