// Package docstore tracks the editor's open buffers so queries can see
// unsaved content. It also applies text edits to a buffer, which is how
// callers of a rename plan materialize it for open documents.
package docstore

import (
	"fmt"
	"sort"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// Document is one open buffer.
type Document struct {
	URI     uri.URI
	Text    string
	Version int32
}

// Store holds open documents keyed by URI, guarded for concurrent request
// handling.
type Store struct {
	mu   sync.RWMutex
	docs map[uri.URI]*Document
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{docs: make(map[uri.URI]*Document)}
}

// Open registers a buffer.
func (s *Store) Open(u uri.URI, text string, version int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[u] = &Document{URI: u, Text: text, Version: version}
}

// Change replaces a tracked buffer's full content.
func (s *Store) Change(u uri.URI, text string, version int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[u]
	if !ok {
		return fmt.Errorf("docstore: %s is not open", u)
	}
	doc.Text = text
	doc.Version = version
	return nil
}

// Close forgets a buffer.
func (s *Store) Close(u uri.URI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, u)
}

// Get returns an open buffer, or nil.
func (s *Store) Get(u uri.URI) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[u]
	if !ok {
		return nil
	}
	copied := *doc
	return &copied
}

// All returns every open buffer, lexically sorted by URI for deterministic
// results.
func (s *Store) All() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// ApplyEdits splices a set of text edits into an open buffer and bumps its
// version. Edits must not overlap; they are applied last-to-first so earlier
// offsets stay valid.
func (s *Store) ApplyEdits(u uri.URI, edits []protocol.TextEdit, version int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[u]
	if !ok {
		return fmt.Errorf("docstore: %s is not open", u)
	}
	text, err := ApplyToText(doc.Text, edits)
	if err != nil {
		return fmt.Errorf("docstore: apply to %s: %w", u, err)
	}
	doc.Text = text
	doc.Version = version
	return nil
}

// ApplyToText applies edits to source text outside the store; used for
// closed files materialized on disk by the caller.
func ApplyToText(text string, edits []protocol.TextEdit) (string, error) {
	offsets := lineOffsets(text)

	type span struct {
		start, end int
		newText    string
	}
	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		start, err := offsetOf(text, offsets, e.Range.Start)
		if err != nil {
			return "", err
		}
		end, err := offsetOf(text, offsets, e.Range.End)
		if err != nil {
			return "", err
		}
		if end < start {
			return "", fmt.Errorf("edit range ends before it starts")
		}
		spans = append(spans, span{start: start, end: end, newText: e.NewText})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start > spans[j].start })

	prevStart := len(text) + 1
	for _, sp := range spans {
		if sp.end > prevStart {
			return "", fmt.Errorf("overlapping edits")
		}
		text = text[:sp.start] + sp.newText + text[sp.end:]
		prevStart = sp.start
	}
	return text, nil
}

// lineOffsets returns the byte offset of each line start.
func lineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func offsetOf(text string, offsets []int, pos protocol.Position) (int, error) {
	if int(pos.Line) >= len(offsets) {
		return 0, fmt.Errorf("line %d out of range", pos.Line)
	}
	off := offsets[pos.Line] + int(pos.Character)
	if off > len(text) {
		return 0, fmt.Errorf("position %d:%d out of range", pos.Line, pos.Character)
	}
	return off, nil
}
