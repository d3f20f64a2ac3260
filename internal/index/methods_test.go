package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/rubicon-ls/rubicon/internal/entry"
)

func TestResolveMethod_WalksAncestors(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/m.rb", `
module Loggable
  def log
  end
end

class Base
  def save
  end
end

class Post < Base
  include Loggable

  def publish
  end
end
`)

	own, err := ix.ResolveMethod("publish", "Post")
	require.NoError(t, err)
	require.NotNil(t, own)
	assert.Equal(t, "Post#publish", own.Name())

	inherited, err := ix.ResolveMethod("save", "Post")
	require.NoError(t, err)
	require.NotNil(t, inherited)
	assert.Equal(t, "Base#save", inherited.Name())

	mixed, err := ix.ResolveMethod("log", "Post")
	require.NoError(t, err)
	require.NotNil(t, mixed)
	assert.Equal(t, "Loggable#log", mixed.Name())
}

func TestResolveMethod_PrependShadowsOwnDefinition(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/p.rb", `
module Audited
  def save
  end
end

class Post
  prepend Audited

  def save
  end
end
`)

	m, err := ix.ResolveMethod("save", "Post")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Audited#save", m.Name())
}

func TestResolveMethod_UnknownIsNilNil(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/u.rb", "class Post\nend\n")

	m, err := ix.ResolveMethod("vanish", "Post")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestResolveMethod_AliasChain(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/a.rb", `
class Post
  def destroy
  end

  alias remove destroy
  alias_method :erase, :remove
end
`)

	m, err := ix.ResolveMethod("erase", "Post")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Post#destroy", m.Name())
	assert.False(t, m.IsAlias())
}

func TestResolveMethod_AliasToInheritedMethod(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/ai.rb", `
class Base
  def save
  end
end

class Post < Base
  alias store save
end
`)

	m, err := ix.ResolveMethod("store", "Post")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Base#save", m.Name())
}

func TestResolveMethod_AliasCycle(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/c.rb", `
class Post
  alias_method :a, :b
  alias_method :b, :a
end
`)

	m, err := ix.ResolveMethod("a", "Post")
	assert.Nil(t, m)
	var aliasErr *UnresolvableAliasError
	require.ErrorAs(t, err, &aliasErr)
	assert.Equal(t, "Post", aliasErr.Owner)
	assert.Equal(t, "a", aliasErr.Name)
}

func TestResolveMethod_DanglingAlias(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/d.rb", `
class Post
  alias gone missing
end
`)

	m, err := ix.ResolveMethod("gone", "Post")
	assert.Nil(t, m)
	var aliasErr *UnresolvableAliasError
	require.ErrorAs(t, err, &aliasErr)
}

func TestResolveMethod_MonkeyPatchWins(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/orig.rb", "class Post\n  def save\n  end\nend\n")
	indexSource(t, ix, "/app/patch.rb", "class Post\n  def save\n  end\nend\n")

	m, err := ix.ResolveMethod("save", "Post")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "/app/patch.rb", m.URI().Filename())
}

func TestResolveSingletonMethod(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/s.rb", `
class Base
  def self.create
  end
end

class Post < Base
  def self.find(id)
  end
end
`)

	direct, err := ix.ResolveSingletonMethod("find", "Post")
	require.NoError(t, err)
	require.NotNil(t, direct)
	assert.Equal(t, "Post.find", direct.Name())

	inherited, err := ix.ResolveSingletonMethod("create", "Post")
	require.NoError(t, err)
	require.NotNil(t, inherited)
	assert.Equal(t, "Base.create", inherited.Name())

	// Instance methods never answer singleton lookups.
	missing, err := ix.ResolveSingletonMethod("save", "Post")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMethodsForOwner(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/o.rb", `
class Base
  def inherited_only
  end
end

class Post < Base
  attr_reader :title

  def publish
  end

  def self.find(id)
  end
end
`)

	ms := ix.MethodsForOwner("Post")
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.MethodName
	}
	// Direct declarations only, name-ordered; ancestors excluded.
	assert.Equal(t, []string{"find", "publish", "title"}, names)
}

func TestResolveMethod_CyclicOwnerStillResolvesPrefix(t *testing.T) {
	t.Parallel()
	ix := New()
	indexSource(t, ix, "/app/cy.rb", `
class A < B
  def from_a
  end
end

class B < A
  def from_b
  end
end
`)

	m, err := ix.ResolveMethod("from_b", "A")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, entry.Instance, m.Kind)
	assert.Equal(t, "B#from_b", m.Name())
}

func TestResolveMethod_ConsistentAgainstConcurrentReplace(t *testing.T) {
	t.Parallel()
	ix := New()
	u := uri.File("/app/post.rb")
	viaBaseA := ix.Extract(u, []byte(`
class BaseA
  def publish
  end
end

class Post < BaseA
end
`), false)
	viaBaseB := ix.Extract(u, []byte(`
class BaseB
  def publish
  end
end

class Post < BaseB
end
`), false)
	ix.Replace(u, viaBaseA)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ix.Replace(u, viaBaseB)
			ix.Replace(u, viaBaseA)
		}
	}()

	// Either snapshot defines publish somewhere on Post's chain, so a query
	// observing one consistent state always resolves.
	for i := 0; i < 500; i++ {
		m, err := ix.ResolveMethod("publish", "Post")
		require.NoError(t, err)
		require.NotNil(t, m)
	}
	<-done
}
