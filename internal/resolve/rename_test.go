package resolve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"
)

func planRename(t *testing.T, r *Resolver, path, src, token string, nth int, newName string) (*WorkspaceEdit, error) {
	t.Helper()
	doc := testDoc(t, path, src)
	decl, err := r.FindDeclaration(doc, posOf(t, src, token, nth))
	require.NoError(t, err)
	require.NotNil(t, decl)
	return r.PlanRename(context.Background(), decl, newName)
}

func TestPlanRename_ConstantAcrossFiles(t *testing.T) {
	t.Parallel()
	articleSrc := "class Article\nend\n"
	mainSrc := "a = Article.new\nb = Article.new\n"
	r := newTestResolver(t, map[string]string{
		"/app/article.rb": articleSrc,
		"/app/main.rb":    mainSrc,
	})

	plan, err := planRename(t, r, "/app/main.rb", mainSrc, "Article", 1, "Post")
	require.NoError(t, err)

	require.Len(t, plan.Changes, 2)
	assert.Len(t, plan.Changes[uri.File("/app/article.rb")], 1)
	assert.Len(t, plan.Changes[uri.File("/app/main.rb")], 2)
	for _, edits := range plan.Changes {
		for _, e := range edits {
			assert.Equal(t, "Post", e.NewText)
		}
	}

	// article.rb follows the naming convention, so the file moves too.
	require.Len(t, plan.FileRenames, 1)
	assert.Equal(t, uri.File("/app/article.rb"), plan.FileRenames[0].OldURI)
	assert.Equal(t, uri.File("/app/post.rb"), plan.FileRenames[0].NewURI)
}

func TestPlanRename_NoFileRenameWhenUnconventional(t *testing.T) {
	t.Parallel()
	src := "class Article\nend\n"
	r := newTestResolver(t, map[string]string{"/app/models.rb": src})

	plan, err := planRename(t, r, "/app/models.rb", src, "Article", 1, "Post")
	require.NoError(t, err)
	assert.Empty(t, plan.FileRenames)
}

func TestPlanRename_SiblingConflictProducesNoEdits(t *testing.T) {
	t.Parallel()
	src := "class Article\nend\n\nclass Post\nend\n"
	r := newTestResolver(t, map[string]string{"/app/c.rb": src})

	plan, err := planRename(t, r, "/app/c.rb", src, "Article", 1, "Post")
	assert.Nil(t, plan, "conflicting rename must produce zero edits")
	var invalid *InvalidNameError
	require.ErrorAs(t, err, &invalid)
	require.NotNil(t, invalid.Conflict)
	assert.Equal(t, "Post", invalid.Conflict.Name())
}

func TestPlanRename_MalformedConstantName(t *testing.T) {
	t.Parallel()
	src := "class Article\nend\n"
	r := newTestResolver(t, map[string]string{"/app/m.rb": src})

	for _, bad := range []string{"post", "9Lives", "A::B", ""} {
		_, err := planRename(t, r, "/app/m.rb", src, "Article", 1, bad)
		var invalid *InvalidNameError
		require.ErrorAs(t, err, &invalid, "name %q must be rejected", bad)
		assert.Nil(t, invalid.Conflict)
	}
}

func TestPlanRename_MethodRenamesCallSites(t *testing.T) {
	t.Parallel()
	src := `
class Post
  def publish
  end
end

post = Post.new
post.publish
`
	r := newTestResolver(t, map[string]string{"/app/m.rb": src})

	plan, err := planRename(t, r, "/app/m.rb", src, "publish", 1, "promote")
	require.NoError(t, err)

	edits := plan.Changes[uri.File("/app/m.rb")]
	require.Len(t, edits, 2)
	assert.Equal(t, posOf(t, src, "publish", 1), edits[0].Range.Start)
	assert.Equal(t, posOf(t, src, "publish", 2), edits[1].Range.Start)
	assert.Empty(t, plan.FileRenames)
}

func TestPlanRename_MethodConflictWithAncestor(t *testing.T) {
	t.Parallel()
	src := `
class Base
  def save
  end
end

class Post < Base
  def persist
  end
end
`
	r := newTestResolver(t, map[string]string{"/app/mc.rb": src})

	_, err := planRename(t, r, "/app/mc.rb", src, "persist", 1, "save")
	var invalid *InvalidNameError
	require.ErrorAs(t, err, &invalid)
	require.NotNil(t, invalid.Conflict)
	assert.Equal(t, "Base#save", invalid.Conflict.Name())
}

func TestPlanRename_MethodPunctuationNames(t *testing.T) {
	t.Parallel()
	src := `
class Post
  def draft
  end
end
`
	r := newTestResolver(t, map[string]string{"/app/q.rb": src})

	plan, err := planRename(t, r, "/app/q.rb", src, "draft", 1, "draft?")
	require.NoError(t, err)
	require.Len(t, plan.Changes[uri.File("/app/q.rb")], 1)

	_, err = planRename(t, r, "/app/q.rb", src, "draft", 1, "dra?ft")
	var invalid *InvalidNameError
	require.ErrorAs(t, err, &invalid)
}

func TestPlanRename_Local(t *testing.T) {
	t.Parallel()
	src := `
def run
  count = 1
  count + 1
end
`
	r := newTestResolver(t, map[string]string{"/app/l.rb": src})

	plan, err := planRename(t, r, "/app/l.rb", src, "count", 1, "total")
	require.NoError(t, err)
	edits := plan.Changes[uri.File("/app/l.rb")]
	require.Len(t, edits, 2)
	assert.Empty(t, plan.FileRenames)
}

func TestPlanRename_LocalConflict(t *testing.T) {
	t.Parallel()
	src := `
def run
  count = 1
  total = 2
  count + total
end
`
	r := newTestResolver(t, map[string]string{"/app/lc.rb": src})

	_, err := planRename(t, r, "/app/lc.rb", src, "count", 1, "total")
	var invalid *InvalidNameError
	require.ErrorAs(t, err, &invalid)
}

func TestPlanRename_LexicalCaptureConflict(t *testing.T) {
	t.Parallel()
	src := `
module App
  class Config
  end

  class Settings
  end
end
`
	r := newTestResolver(t, map[string]string{"/app/cap.rb": src})

	// Renaming App::Settings to Config collides with the sibling.
	_, err := planRename(t, r, "/app/cap.rb", src, "Settings", 1, "Config")
	var invalid *InvalidNameError
	require.ErrorAs(t, err, &invalid)
	require.NotNil(t, invalid.Conflict)
	assert.Equal(t, "App::Config", invalid.Conflict.Name())
}

func TestPlanRename_EditsSortedWithinFile(t *testing.T) {
	t.Parallel()
	src := "class Thing\nend\nThing.new\nThing.new\n"
	r := newTestResolver(t, map[string]string{"/app/s.rb": src})

	plan, err := planRename(t, r, "/app/s.rb", src, "Thing", 1, "Widget")
	require.NoError(t, err)
	edits := plan.Changes[uri.File("/app/s.rb")]
	require.Len(t, edits, 3)
	for i := 1; i < len(edits); i++ {
		prev, cur := edits[i-1].Range.Start, edits[i].Range.Start
		assert.True(t, prev.Line < cur.Line ||
			(prev.Line == cur.Line && prev.Character < cur.Character))
	}
}
