package rubicon

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/resolve"
)

// workItem is one file going through the indexing pipeline.
type workItem struct {
	uri      uri.URI
	content  []byte
	hash     string
	external bool

	// extracted is filled by the parallel phase and committed serially.
	extracted []entry.Entry
}

// IndexAll discovers and indexes every Ruby file under the root plus the
// configured library roots, using a three-phase pipeline:
//
//	Phase A (serial):   discovery, read, hash check.
//	Phase B (parallel): parse and extract declarations per file.
//	Phase C (serial):   commit each document's contribution to the index.
//
// Unchanged files (same content hash) are skipped. Individual file errors
// are logged and skipped; discovery errors abort.
func (w *Workspace) IndexAll(ctx context.Context) error {
	// ---- Phase A: serial preparation ----
	var items []*workItem
	if err := w.prepareDir(w.root, false, &items); err != nil {
		return fmt.Errorf("rubicon: index %s: %w", w.root, err)
	}
	for _, lib := range w.cfg.LibraryRoots {
		if err := w.prepareDir(lib, true, &items); err != nil {
			return fmt.Errorf("rubicon: index library %s: %w", lib, err)
		}
	}
	if len(items) == 0 {
		return nil
	}

	// ---- Phase B: parallel extraction ----
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.parallelism())
	for _, item := range items {
		item := item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			item.extracted = w.index.Extract(item.uri, item.content, item.external)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("rubicon: extract: %w", err)
	}

	// ---- Phase C: serial commit ----
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, item := range items {
		w.index.Replace(item.uri, item.extracted)
		w.hashes[item.uri] = item.hash
	}
	w.logger.Info("workspace indexed", zap.Int("files", len(items)))
	return nil
}

// prepareDir walks a directory collecting changed Ruby files as work items.
func (w *Workspace) prepareDir(root string, external bool, items *[]*workItem) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr == nil && (strings.HasPrefix(d.Name(), ".") || w.cfg.excluded(rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".rb" {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && w.cfg.excluded(rel) {
			return nil
		}

		item, skip, prepErr := w.prepareFile(path, external)
		if prepErr != nil {
			w.logger.Warn("skipping file", zap.String("path", path), zap.Error(prepErr))
			return nil
		}
		if !skip {
			*items = append(*items, item)
		}
		return nil
	})
}

// prepareFile reads one file and checks its hash against the last indexed
// state. skip means unchanged or superseded by an open buffer.
func (w *Workspace) prepareFile(path string, external bool) (*workItem, bool, error) {
	u := uri.File(path)

	// An open buffer owns the document's contribution; disk state is stale.
	if w.docs.Get(u) != nil {
		return nil, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	w.mu.Lock()
	prev, indexed := w.hashes[u]
	w.mu.Unlock()
	if indexed && prev == hash {
		return nil, true, nil
	}

	return &workItem{uri: u, content: content, hash: hash, external: external}, false, nil
}

// DidOpen registers an editor buffer and indexes its content in place of the
// on-disk file.
func (w *Workspace) DidOpen(u uri.URI, text string, version int32) {
	w.docs.Open(u, text, version)
	w.index.IndexSingle(u, []byte(text), false)
}

// DidChange replaces a buffer's content and re-indexes the document.
func (w *Workspace) DidChange(u uri.URI, text string, version int32) error {
	if err := w.docs.Change(u, text, version); err != nil {
		return err
	}
	w.index.IndexSingle(u, []byte(text), false)
	return nil
}

// DidClose forgets the buffer and restores the document's on-disk state: a
// re-index from disk when the file exists, a delete when it does not.
func (w *Workspace) DidClose(u uri.URI) {
	w.docs.Close(u)

	path := u.Filename()
	content, err := os.ReadFile(path)
	if err != nil {
		w.index.Delete(u)
		w.mu.Lock()
		delete(w.hashes, u)
		w.mu.Unlock()
		return
	}
	w.index.IndexSingle(u, content, false)
	w.mu.Lock()
	w.hashes[u] = fmt.Sprintf("%x", sha256.Sum256(content))
	w.mu.Unlock()
}

// RemoveFile drops a deleted file's contribution from the index.
func (w *Workspace) RemoveFile(u uri.URI) {
	w.index.Delete(u)
	w.mu.Lock()
	delete(w.hashes, u)
	w.mu.Unlock()
}

// WorkspaceSources implements resolve.Loader: every indexed document's
// current text, with open buffers overriding disk.
func (w *Workspace) WorkspaceSources() ([]resolve.FileSource, error) {
	seen := make(map[uri.URI]bool)
	var out []resolve.FileSource

	for _, doc := range w.docs.All() {
		seen[doc.URI] = true
		out = append(out, resolve.FileSource{URI: doc.URI, Text: []byte(doc.Text)})
	}
	for _, u := range w.index.URIs() {
		if seen[u] {
			continue
		}
		content, err := os.ReadFile(u.Filename())
		if err != nil {
			// Deleted since indexing; its entries will go on the next walk.
			w.logger.Debug("source vanished", zap.String("uri", string(u)))
			continue
		}
		out = append(out, resolve.FileSource{URI: u, Text: content})
	}
	return out, nil
}
