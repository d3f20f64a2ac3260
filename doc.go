// Package rubicon provides language-intelligence queries for Ruby projects:
// a workspace-wide symbol index built on tree-sitter, position-based
// resolution, reference enumeration, and rename planning.
//
// # Pipeline
//
// A [Workspace] indexes in three phases:
//
//  1. Prepare: walk the project root and library roots, read each Ruby
//     file, and skip files whose content hash is unchanged.
//  2. Extract: parse changed files in parallel and collect their
//     declarations with a single-pass tree walk.
//  3. Commit: replace each document's contribution in the index serially,
//     so readers always see whole documents.
//
// # Usage
//
// Create a Workspace, index the project, then query:
//
//	ws, err := rubicon.New("path/to/project")
//	if err != nil { ... }
//
//	ctx := context.Background()
//	err = ws.IndexAll(ctx)
//
//	decl, err := ws.DefinitionAt(ctx, uri.File("app/models/post.rb"), pos)
//	locs, err := ws.ReferencesAt(ctx, u, pos, true)
//	plan, err := ws.RenameAt(ctx, u, pos, "Article")
//
// Open editor buffers registered with [Workspace.DidOpen] take precedence
// over on-disk content for every query, so unsaved changes are always
// visible.
//
// # Incremental updates
//
// [Workspace.IndexAll] detects unchanged files via content hashing and
// skips them. [Workspace.DidChange] re-indexes a single document in one
// atomic replacement; queries running concurrently observe either the old
// or the new contribution, never a mix.
package rubicon
