package rubicon

import (
	"context"
	"fmt"
	"os"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/parse"
	"github.com/rubicon-ls/rubicon/internal/resolve"
)

// Search returns entries whose names fuzzily match query, best first.
// External (library) declarations are excluded unless includeExternal.
func (w *Workspace) Search(query string, includeExternal bool) []entry.Entry {
	return w.index.FuzzySearch(query, includeExternal)
}

// DefinitionAt resolves the symbol under pos to its declaration. A nil
// declaration with nil error means nothing resolvable is there.
func (w *Workspace) DefinitionAt(ctx context.Context, u uri.URI, pos protocol.Position) (resolve.Declaration, error) {
	doc, err := w.documentAt(ctx, u)
	if err != nil {
		return nil, err
	}
	return w.resolver.FindDeclaration(doc, pos)
}

// ReferencesAt lists every occurrence of the symbol under pos across the
// workspace, ordered by URI then position.
func (w *Workspace) ReferencesAt(ctx context.Context, u uri.URI, pos protocol.Position, includeDeclaration bool) ([]protocol.Location, error) {
	doc, err := w.documentAt(ctx, u)
	if err != nil {
		return nil, err
	}
	decl, err := w.resolver.FindDeclaration(doc, pos)
	if err != nil || decl == nil {
		return nil, err
	}
	return w.resolver.FindReferences(ctx, decl, includeDeclaration)
}

// RenameAt plans a rename of the symbol under pos. The plan is all or
// nothing: a conflict yields *resolve.InvalidNameError and no edits.
func (w *Workspace) RenameAt(ctx context.Context, u uri.URI, pos protocol.Position, newName string) (*resolve.WorkspaceEdit, error) {
	doc, err := w.documentAt(ctx, u)
	if err != nil {
		return nil, err
	}
	decl, err := w.resolver.FindDeclaration(doc, pos)
	if err != nil {
		return nil, err
	}
	if decl == nil {
		return nil, fmt.Errorf("rubicon: nothing to rename at %s:%d:%d", u, pos.Line, pos.Character)
	}
	return w.resolver.PlanRename(ctx, decl, newName)
}

// DocumentSymbols returns the document's current declarations in indexing
// order.
func (w *Workspace) DocumentSymbols(u uri.URI) []entry.Entry {
	return w.index.EntriesForURI(u)
}

// Diagnostics re-parses the document and returns its syntax diagnostics.
func (w *Workspace) Diagnostics(ctx context.Context, u uri.URI) ([]parse.Diagnostic, error) {
	text, err := w.textOf(u)
	if err != nil {
		return nil, err
	}
	res, err := parse.Parse(ctx, text)
	if err != nil {
		return nil, err
	}
	return res.Diagnostics, nil
}

// documentAt parses the document's current text, buffer first.
func (w *Workspace) documentAt(ctx context.Context, u uri.URI) (*resolve.Document, error) {
	text, err := w.textOf(u)
	if err != nil {
		return nil, err
	}
	return resolve.NewDocument(ctx, u, text)
}

// textOf returns the current content of a document: the open buffer when
// one exists, the on-disk bytes otherwise.
func (w *Workspace) textOf(u uri.URI) ([]byte, error) {
	if doc := w.docs.Get(u); doc != nil {
		return []byte(doc.Text), nil
	}
	content, err := os.ReadFile(u.Filename())
	if err != nil {
		return nil, fmt.Errorf("rubicon: read %s: %w", u, err)
	}
	return content, nil
}
