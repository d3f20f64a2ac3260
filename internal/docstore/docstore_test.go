package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func edit(sl, sc, el, ec uint32, text string) protocol.TextEdit {
	return protocol.TextEdit{
		Range:   protocol.Range{Start: pos(sl, sc), End: pos(el, ec)},
		NewText: text,
	}
}

func TestStore_OpenChangeClose(t *testing.T) {
	t.Parallel()
	s := NewStore()
	u := uri.File("/app/foo.rb")

	s.Open(u, "class Foo\nend\n", 1)
	doc := s.Get(u)
	require.NotNil(t, doc)
	assert.Equal(t, int32(1), doc.Version)

	require.NoError(t, s.Change(u, "class Bar\nend\n", 2))
	doc = s.Get(u)
	assert.Equal(t, "class Bar\nend\n", doc.Text)
	assert.Equal(t, int32(2), doc.Version)

	s.Close(u)
	assert.Nil(t, s.Get(u))
}

func TestStore_ChangeUnopenedFails(t *testing.T) {
	t.Parallel()
	s := NewStore()
	assert.Error(t, s.Change(uri.File("/app/none.rb"), "x", 1))
}

func TestStore_GetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := NewStore()
	u := uri.File("/app/foo.rb")
	s.Open(u, "original", 1)

	doc := s.Get(u)
	doc.Text = "mutated"
	assert.Equal(t, "original", s.Get(u).Text)
}

func TestStore_AllSortedByURI(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Open(uri.File("/app/b.rb"), "b", 1)
	s.Open(uri.File("/app/a.rb"), "a", 1)
	s.Open(uri.File("/app/c.rb"), "c", 1)

	docs := s.All()
	require.Len(t, docs, 3)
	assert.Equal(t, "a", docs[0].Text)
	assert.Equal(t, "b", docs[1].Text)
	assert.Equal(t, "c", docs[2].Text)
}

func TestApplyToText_SingleEdit(t *testing.T) {
	t.Parallel()
	got, err := ApplyToText("class Foo\nend\n", []protocol.TextEdit{
		edit(0, 6, 0, 9, "Bar"),
	})
	require.NoError(t, err)
	assert.Equal(t, "class Bar\nend\n", got)
}

func TestApplyToText_MultipleEditsAnyOrder(t *testing.T) {
	t.Parallel()
	text := "foo = foo + foo\n"
	edits := []protocol.TextEdit{
		edit(0, 0, 0, 3, "bar"),
		edit(0, 6, 0, 9, "bar"),
		edit(0, 12, 0, 15, "bar"),
	}
	got, err := ApplyToText(text, edits)
	require.NoError(t, err)
	assert.Equal(t, "bar = bar + bar\n", got)

	// Reversed input order produces the same result.
	reversed := []protocol.TextEdit{edits[2], edits[1], edits[0]}
	got, err = ApplyToText(text, reversed)
	require.NoError(t, err)
	assert.Equal(t, "bar = bar + bar\n", got)
}

func TestApplyToText_MultiLine(t *testing.T) {
	t.Parallel()
	text := "class Foo\n  def bar\n  end\nend\n"
	got, err := ApplyToText(text, []protocol.TextEdit{
		edit(1, 6, 1, 9, "baz"),
	})
	require.NoError(t, err)
	assert.Equal(t, "class Foo\n  def baz\n  end\nend\n", got)
}

func TestApplyToText_Insertion(t *testing.T) {
	t.Parallel()
	got, err := ApplyToText("ab\n", []protocol.TextEdit{
		edit(0, 1, 0, 1, "X"),
	})
	require.NoError(t, err)
	assert.Equal(t, "aXb\n", got)
}

func TestApplyToText_OverlappingEditsFail(t *testing.T) {
	t.Parallel()
	_, err := ApplyToText("abcdef\n", []protocol.TextEdit{
		edit(0, 0, 0, 4, "x"),
		edit(0, 2, 0, 6, "y"),
	})
	assert.Error(t, err)
}

func TestApplyToText_OutOfRangeFails(t *testing.T) {
	t.Parallel()
	_, err := ApplyToText("ab\n", []protocol.TextEdit{
		edit(5, 0, 5, 1, "x"),
	})
	assert.Error(t, err)
}

func TestApplyEdits_UpdatesBufferAndVersion(t *testing.T) {
	t.Parallel()
	s := NewStore()
	u := uri.File("/app/foo.rb")
	s.Open(u, "class Foo\nend\n", 1)

	err := s.ApplyEdits(u, []protocol.TextEdit{edit(0, 6, 0, 9, "Bar")}, 2)
	require.NoError(t, err)

	doc := s.Get(u)
	assert.Equal(t, "class Bar\nend\n", doc.Text)
	assert.Equal(t, int32(2), doc.Version)
}
