package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

func findRefs(t *testing.T, r *Resolver, path, src, token string, nth int, includeDecl bool) []protocol.Location {
	t.Helper()
	doc := testDoc(t, path, src)
	decl, err := r.FindDeclaration(doc, posOf(t, src, token, nth))
	require.NoError(t, err)
	require.NotNil(t, decl, "no declaration for %q", token)
	locs, err := r.FindReferences(context.Background(), decl, includeDecl)
	require.NoError(t, err)
	return locs
}

func TestFindReferences_ConstantAcrossFiles(t *testing.T) {
	t.Parallel()
	postSrc := "class Post\nend\n"
	mainSrc := "a = Post.new\nb = Post.new\n"
	r := newTestResolver(t, map[string]string{
		"/app/post.rb": postSrc,
		"/app/main.rb": mainSrc,
	})

	locs := findRefs(t, r, "/app/main.rb", mainSrc, "Post", 1, true)
	require.Len(t, locs, 3)

	// URIs ascend, then positions within each file.
	assert.Equal(t, uri.File("/app/main.rb"), locs[0].URI)
	assert.Equal(t, uint32(0), locs[0].Range.Start.Line)
	assert.Equal(t, uri.File("/app/main.rb"), locs[1].URI)
	assert.Equal(t, uint32(1), locs[1].Range.Start.Line)
	assert.Equal(t, uri.File("/app/post.rb"), locs[2].URI)
}

func TestFindReferences_ExcludeDeclaration(t *testing.T) {
	t.Parallel()
	postSrc := "class Post\nend\n"
	mainSrc := "Post.new\n"
	r := newTestResolver(t, map[string]string{
		"/app/post.rb": postSrc,
		"/app/main.rb": mainSrc,
	})

	locs := findRefs(t, r, "/app/main.rb", mainSrc, "Post", 1, false)
	require.Len(t, locs, 1)
	assert.Equal(t, uri.File("/app/main.rb"), locs[0].URI)
}

func TestFindReferences_ScopedAndRelativeMentions(t *testing.T) {
	t.Parallel()
	src := `
module Admin
  class Dashboard
  end

  Dashboard.new
end

Admin::Dashboard.new
`
	r := newTestResolver(t, map[string]string{"/app/a.rb": src})

	locs := findRefs(t, r, "/app/a.rb", src, "Dashboard", 1, true)
	// Declaration, relative mention, and the name token of the scoped
	// mention. The Admin qualifier is not an occurrence of Dashboard.
	assert.Len(t, locs, 3)
}

func TestFindReferences_MethodCallSitesAndDefs(t *testing.T) {
	t.Parallel()
	src := `
class Post
  def publish
  end
end

class Draft
  def publish
  end
end

post = Post.new
post.publish
`
	r := newTestResolver(t, map[string]string{"/app/m.rb": src})

	locs := findRefs(t, r, "/app/m.rb", src, "publish", 1, true)
	// Post#publish's def and the call through the guessed Post receiver.
	// Draft#publish is a different method and stays out.
	require.Len(t, locs, 2)
	assert.Equal(t, posOf(t, src, "publish", 1), locs[0].Range.Start)
	assert.Equal(t, posOf(t, src, "publish", 3), locs[1].Range.Start)
}

func TestFindReferences_UnknownReceiverDegradesToNameMatch(t *testing.T) {
	t.Parallel()
	src := `
class Post
  def publish
  end
end

mystery.publish
`
	r := newTestResolver(t, map[string]string{"/app/d.rb": src})

	locs := findRefs(t, r, "/app/d.rb", src, "publish", 1, true)
	// The unknown receiver's call is included on name match.
	assert.Len(t, locs, 2)
}

func TestFindReferences_AliasSourceCounts(t *testing.T) {
	t.Parallel()
	src := `
class Post
  def destroy
  end

  alias remove destroy
end
`
	r := newTestResolver(t, map[string]string{"/app/al.rb": src})

	locs := findRefs(t, r, "/app/al.rb", src, "destroy", 1, true)
	// The def name and the alias's old-name mention.
	assert.Len(t, locs, 2)
}

func TestFindReferences_AliasMethodOldNameCounts(t *testing.T) {
	t.Parallel()
	src := `
class Post
  def orig
  end

  alias_method :copy, :orig
end
`
	r := newTestResolver(t, map[string]string{"/app/am.rb": src})

	locs := findRefs(t, r, "/app/am.rb", src, "orig", 1, true)
	// The def name and the old-name symbol argument, colon excluded.
	require.Len(t, locs, 2)
	assert.Equal(t, posOf(t, src, "orig", 1), locs[0].Range.Start)
	assert.Equal(t, posOf(t, src, "orig", 2), locs[1].Range.Start)
}

func TestFindReferences_LocalStaysInScope(t *testing.T) {
	t.Parallel()
	src := `
def first
  count = 1
  count + 1
end

def second
  count = 2
  count
end
`
	r := newTestResolver(t, map[string]string{"/app/l.rb": src})

	locs := findRefs(t, r, "/app/l.rb", src, "count", 1, true)
	require.Len(t, locs, 2, "sibling method locals must not leak in")
	assert.Equal(t, posOf(t, src, "count", 1), locs[0].Range.Start)
	assert.Equal(t, posOf(t, src, "count", 2), locs[1].Range.Start)
}

func TestFindReferences_LocalCrossesBlocks(t *testing.T) {
	t.Parallel()
	src := `
def run
  total = 0
  items.each do |n|
    total = total + n
  end
  total
end
`
	r := newTestResolver(t, map[string]string{"/app/b.rb": src})

	locs := findRefs(t, r, "/app/b.rb", src, "total", 1, true)
	assert.Len(t, locs, 4)
}

func TestFindReferences_LocalExcludeDeclaration(t *testing.T) {
	t.Parallel()
	src := `
def run
  flag = true
  flag
end
`
	r := newTestResolver(t, map[string]string{"/app/x.rb": src})

	locs := findRefs(t, r, "/app/x.rb", src, "flag", 1, false)
	require.Len(t, locs, 1)
	assert.Equal(t, posOf(t, src, "flag", 2), locs[0].Range.Start)
}

func TestFindReferences_UnsavedBufferContent(t *testing.T) {
	t.Parallel()
	// The loader serves buffer content that differs from what was indexed:
	// an extra mention only exists in the unsaved text.
	indexed := "class Post\nend\n"
	buffer := "class Post\nend\nPost.new\n"

	r := newTestResolver(t, map[string]string{"/app/p.rb": indexed})
	r.loader = fakeLoader{sources: map[string]string{"/app/p.rb": buffer}}

	locs := findRefs(t, r, "/app/p.rb", buffer, "Post", 1, true)
	assert.Len(t, locs, 2, "occurrences must come from buffer text, not disk")
}
