package resolve

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/rubicon-ls/rubicon/internal/entry"
)

// FileRename records that a declaration's file should follow the new name.
type FileRename struct {
	OldURI uri.URI
	NewURI uri.URI
}

// WorkspaceEdit is an all-or-nothing rename plan: text edits per document
// plus any file renames. Nothing is applied; callers materialize the plan.
type WorkspaceEdit struct {
	Changes     map[uri.URI][]protocol.TextEdit
	FileRenames []FileRename
}

// InvalidNameError rejects a rename before any edit is produced, either for
// a malformed name or for a collision with an existing declaration.
type InvalidNameError struct {
	NewName string
	Reason  string
	// Conflict is the colliding declaration, when the rejection is a
	// collision rather than a shape problem.
	Conflict entry.Entry
}

func (e *InvalidNameError) Error() string {
	if e.Conflict != nil {
		return fmt.Sprintf("cannot rename to %q: conflicts with %s", e.NewName, e.Conflict.Name())
	}
	return fmt.Sprintf("cannot rename to %q: %s", e.NewName, e.Reason)
}

var (
	constantNameRE = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)
	methodNameRE   = regexp.MustCompile(`^[a-z_][A-Za-z0-9_]*[?!=]?$`)
	localNameRE    = regexp.MustCompile(`^[a-z_][A-Za-z0-9_]*$`)
)

// PlanRename validates newName against decl's kind, checks for collisions,
// and builds the complete edit set. Any rejection returns *InvalidNameError
// and zero edits. When a namespace's file follows the `foo_bar.rb` naming
// convention for FooBar, the plan also renames the file.
func (r *Resolver) PlanRename(ctx context.Context, decl Declaration, newName string) (*WorkspaceEdit, error) {
	if err := r.validateRename(decl, newName); err != nil {
		return nil, err
	}

	locs, err := r.FindReferences(ctx, decl, true)
	if err != nil {
		return nil, fmt.Errorf("resolve: collect rename targets: %w", err)
	}

	changes := make(map[uri.URI][]protocol.TextEdit)
	for _, loc := range locs {
		changes[loc.URI] = append(changes[loc.URI], protocol.TextEdit{
			Range:   loc.Range,
			NewText: newName,
		})
	}
	for u := range changes {
		edits := changes[u]
		sort.Slice(edits, func(i, j int) bool {
			a, b := edits[i].Range.Start, edits[j].Range.Start
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.Character < b.Character
		})
		changes[u] = edits
	}

	plan := &WorkspaceEdit{Changes: changes}
	if ns, ok := decl.(*entry.Namespace); ok {
		if fr, ok := conventionalFileRename(ns, newName); ok {
			plan.FileRenames = append(plan.FileRenames, fr)
		}
	}
	return plan, nil
}

func (r *Resolver) validateRename(decl Declaration, newName string) error {
	switch d := decl.(type) {
	case *LocalBinding:
		if !localNameRE.MatchString(newName) {
			return &InvalidNameError{NewName: newName, Reason: "not a valid local variable name"}
		}
		if existing := bindingInScope(d.doc, d.scope, newName, d.scope); existing != nil {
			return &InvalidNameError{NewName: newName, Reason: "a local variable with that name already exists in scope"}
		}
		return nil

	case *entry.Method:
		if !methodNameRE.MatchString(newName) {
			return &InvalidNameError{NewName: newName, Reason: "not a valid method name"}
		}
		var conflict *entry.Method
		var err error
		if d.Kind == entry.Singleton {
			conflict, err = r.index.ResolveSingletonMethod(newName, d.Owner)
		} else {
			conflict, err = r.index.ResolveMethod(newName, d.Owner)
		}
		if err != nil {
			// An unresolvable alias still occupies the name.
			return &InvalidNameError{NewName: newName, Reason: "name is taken by an alias"}
		}
		if conflict != nil {
			return &InvalidNameError{NewName: newName, Conflict: conflict}
		}
		return nil

	case entry.Entry:
		if strings.Contains(newName, "::") || !constantNameRE.MatchString(newName) {
			return &InvalidNameError{NewName: newName, Reason: "not a valid constant name"}
		}
		return r.checkConstantConflict(d, newName)
	}
	return fmt.Errorf("resolve: unsupported declaration %T", decl)
}

// checkConstantConflict rejects a new constant name that collides with an
// existing sibling or that an enclosing scope would capture.
func (r *Resolver) checkConstantConflict(d entry.Entry, newName string) error {
	parent := parentName(d.Name())
	sibling := newName
	if parent != "" {
		sibling = parent + "::" + newName
	}
	if conflict := r.index.Get(sibling); conflict != nil {
		return &InvalidNameError{NewName: newName, Conflict: conflict}
	}

	var nesting []string
	if parent != "" {
		nesting = strings.Split(parent, "::")
	}
	if fq, found := r.index.ConstantNameAt(nesting, newName); found && fq != d.Name() {
		return &InvalidNameError{NewName: newName, Conflict: r.index.Get(fq)}
	}
	return nil
}

func parentName(fq string) string {
	if i := strings.LastIndex(fq, "::"); i >= 0 {
		return fq[:i]
	}
	return ""
}

// conventionalFileRename proposes foo_bar.rb -> new_name.rb when the
// namespace's file is named after it.
func conventionalFileRename(ns *entry.Namespace, newName string) (FileRename, bool) {
	path := ns.URI().Filename()
	if path == "" {
		return FileRename{}, false
	}
	want := snakeCase(entry.LastSegment(ns.Name())) + ".rb"
	if filepath.Base(path) != want {
		return FileRename{}, false
	}
	newPath := filepath.Join(filepath.Dir(path), snakeCase(newName)+".rb")
	return FileRename{OldURI: ns.URI(), NewURI: uri.File(newPath)}, true
}

// snakeCase converts CamelCase to snake_case the way file naming
// conventions expect: HTTPServer becomes http_server.
func snakeCase(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if r >= 'A' && r <= 'Z' {
			prevLower := i > 0 && isLowerAlnum(runes[i-1])
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'
			if i > 0 && (prevLower || nextLower) && runes[i-1] != '_' {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isLowerAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}
