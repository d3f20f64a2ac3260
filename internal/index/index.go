// Package index maintains the workspace-wide symbol database: a mutable
// multimap from fully-qualified names to declaration entries, updated
// incrementally one document at a time. It owns ancestor linearization,
// alias resolution, lexical constant lookup, and fuzzy name search.
//
// The index is the one shared mutable resource in the core. A single
// RWMutex enforces single-writer/multiple-reader discipline: every mutation
// is one atomic replace-then-insert for a document's contribution, and
// readers always observe the state taken at call entry.
package index

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/rubicon-ls/rubicon/internal/dispatch"
	"github.com/rubicon-ls/rubicon/internal/entry"
	"github.com/rubicon-ls/rubicon/internal/parse"
)

// MaxAliasDepth bounds alias-chain following; tuned against the property
// tests rather than a hard language limit.
const MaxAliasDepth = 10

// Index is the process-wide symbol database. Construct once at startup with
// New, mutate for the server's lifetime, drop at shutdown.
type Index struct {
	mu sync.RWMutex

	// entries is the primary multimap: FQN → entries in indexing order.
	// Reopened namespaces and monkey patches append; "the" declaration is
	// the last element.
	entries map[string][]entry.Entry

	// byURI tracks each document's contribution so re-indexing can replace
	// it atomically.
	byURI map[uri.URI][]entry.Entry

	logger *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithLogger attaches a logger for debug-level indexing traces.
func WithLogger(logger *zap.Logger) Option {
	return func(ix *Index) { ix.logger = logger }
}

// New creates an empty Index.
func New(opts ...Option) *Index {
	ix := &Index{
		entries: make(map[string][]entry.Entry),
		byURI:   make(map[uri.URI][]entry.Entry),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexSingle parses source and replaces the document's prior contribution
// with the declarations found. Malformed source contributes whatever could
// be parsed; a document that fails to parse entirely contributes nothing.
// Syntax diagnostics are the parser's concern, not the index's.
//
// external marks entries as coming from a library/stdlib path so fuzzy
// search can exclude them cheaply.
func (ix *Index) IndexSingle(u uri.URI, source []byte, external bool) {
	ix.Replace(u, ix.Extract(u, source, external))
}

// Extract parses source and returns its declarations without touching the
// index. Bulk indexing extracts documents in parallel, then commits each
// result serially with Replace.
func (ix *Index) Extract(u uri.URI, source []byte, external bool) []entry.Entry {
	res, err := parse.Parse(context.Background(), source)
	if err != nil {
		// Parser failure degrades to an empty contribution; Replace still
		// drops the document's stale entries.
		ix.logger.Debug("index: parse failed", zap.String("uri", string(u)), zap.Error(err))
		return nil
	}

	listener := newDeclarationListener(u, res.Source, !external)
	d := dispatch.New()
	listener.register(d)
	d.Dispatch(res.Root())
	return listener.entries
}

// Replace atomically swaps the document's contribution for found. Readers
// never observe a half-updated document.
func (ix *Index) Replace(u uri.URI, found []entry.Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(u)
	ix.byURI[u] = found
	for _, e := range found {
		ix.entries[e.Name()] = append(ix.entries[e.Name()], e)
	}
	ix.logger.Debug("index: replaced document",
		zap.String("uri", string(u)), zap.Int("entries", len(found)))
}

// Delete removes all entries contributed by the document.
func (ix *Index) Delete(u uri.URI) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(u)
	delete(ix.byURI, u)
}

// removeLocked drops a document's entries from the primary multimap.
// Callers hold the write lock.
func (ix *Index) removeLocked(u uri.URI) {
	for _, e := range ix.byURI[u] {
		kept := ix.entries[e.Name()][:0]
		for _, candidate := range ix.entries[e.Name()] {
			if candidate != e {
				kept = append(kept, candidate)
			}
		}
		if len(kept) == 0 {
			delete(ix.entries, e.Name())
		} else {
			ix.entries[e.Name()] = kept
		}
	}
}

// EntriesFor returns every entry indexed under the fully-qualified name, in
// indexing order. The returned slice is a copy.
func (ix *Index) EntriesFor(name string) []entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	es := ix.entries[name]
	if len(es) == 0 {
		return nil
	}
	out := make([]entry.Entry, len(es))
	copy(out, es)
	return out
}

// Get returns "the" declaration for a name: the most recently indexed entry,
// or nil when the name is unknown.
func (ix *Index) Get(name string) entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	es := ix.entries[name]
	if len(es) == 0 {
		return nil
	}
	return es[len(es)-1]
}

// EntriesForURI returns the document's current contribution.
func (ix *Index) EntriesForURI(u uri.URI) []entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	es := ix.byURI[u]
	out := make([]entry.Entry, len(es))
	copy(out, es)
	return out
}

// URIs returns every indexed document, lexically sorted.
func (ix *Index) URIs() []uri.URI {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]uri.URI, 0, len(ix.byURI))
	for u := range ix.byURI {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Names returns every indexed fully-qualified name, lexically sorted.
func (ix *Index) Names() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.entries))
	for name := range ix.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ConstantNameAt resolves a simple constant reference against a lexical
// nesting, innermost first, then falls back to top level. Only static
// scoping is modeled. Returns the fully-qualified name and whether any
// declaration exists for it.
func (ix *Index) ConstantNameAt(nesting []string, name string) (string, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.constantNameLocked(nesting, name)
}

func (ix *Index) constantNameLocked(nesting []string, name string) (string, bool) {
	// A leading "::" pins the reference to top level.
	if rest, ok := strings.CutPrefix(name, "::"); ok {
		_, found := ix.entries[rest]
		return rest, found
	}
	for i := len(nesting); i > 0; i-- {
		candidate := entry.Join(nesting[:i]) + "::" + name
		if _, ok := ix.entries[candidate]; ok {
			return candidate, true
		}
	}
	_, ok := ix.entries[name]
	return name, ok
}
