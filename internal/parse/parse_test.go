package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestParse_CleanSource(t *testing.T) {
	t.Parallel()
	res, err := Parse(context.Background(), []byte("class Foo\n  def bar\n  end\nend\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, "program", res.Root().Type())
}

func TestParse_MalformedSourceYieldsDiagnostics(t *testing.T) {
	t.Parallel()
	res, err := Parse(context.Background(), []byte("class Foo\n  def bar(\nend\n"))
	require.NoError(t, err, "syntax errors must not be parse failures")
	require.NotNil(t, res.Tree)
	assert.NotEmpty(t, res.Diagnostics)
	for _, d := range res.Diagnostics {
		assert.Equal(t, SeverityError, d.Severity)
	}
}

func TestParse_EmptySource(t *testing.T) {
	t.Parallel()
	res, err := Parse(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)
}

func TestNodeAt(t *testing.T) {
	t.Parallel()
	src := []byte("class Foo\n  def bar\n  end\nend\n")
	res, err := Parse(context.Background(), src)
	require.NoError(t, err)

	// Position on "Foo".
	node := NodeAt(res.Root(), protocol.Position{Line: 0, Character: 7})
	require.NotNil(t, node)
	assert.Equal(t, "constant", node.Type())
	assert.Equal(t, "Foo", node.Content(src))

	// Position on "bar".
	node = NodeAt(res.Root(), protocol.Position{Line: 1, Character: 6})
	require.NotNil(t, node)
	assert.Equal(t, "identifier", node.Type())
	assert.Equal(t, "bar", node.Content(src))
}

func TestNodeRange_RoundTrip(t *testing.T) {
	t.Parallel()
	src := []byte("X = 1\n")
	res, err := Parse(context.Background(), src)
	require.NoError(t, err)

	node := NodeAt(res.Root(), protocol.Position{Line: 0, Character: 0})
	require.NotNil(t, node)
	r := NodeRange(node)
	assert.Equal(t, uint32(0), r.Start.Line)
	assert.Equal(t, uint32(0), r.Start.Character)
	assert.Equal(t, uint32(1), r.End.Character)
}
