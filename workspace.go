package rubicon

import (
	"fmt"
	"sync"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/rubicon-ls/rubicon/internal/docstore"
	"github.com/rubicon-ls/rubicon/internal/index"
	"github.com/rubicon-ls/rubicon/internal/resolve"
)

// Workspace orchestrates the pipeline over one project root: file discovery,
// change detection, parallel extraction, and query access through the index
// and resolver.
type Workspace struct {
	root   string
	cfg    Config
	logger *zap.Logger

	index    *index.Index
	docs     *docstore.Store
	resolver *resolve.Resolver

	// hashes tracks each indexed file's content hash so unchanged files are
	// skipped on re-index. Guarded separately from the index's own lock.
	mu     sync.Mutex
	hashes map[uri.URI]string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// WithConfig overrides the configuration loaded from the root.
func WithConfig(cfg Config) Option {
	return func(w *Workspace) { w.cfg = cfg }
}

// WithParallelism bounds concurrent extraction during IndexAll.
func WithParallelism(n int) Option {
	return func(w *Workspace) { w.cfg.Parallelism = n }
}

// New creates a Workspace for the project at root. Configuration comes from
// the root's config file unless WithConfig overrides it. The workspace is
// empty until IndexAll or DidOpen populates it.
func New(root string, opts ...Option) (*Workspace, error) {
	cfg, err := LoadConfig(root)
	if err != nil {
		return nil, fmt.Errorf("rubicon: %w", err)
	}

	w := &Workspace{
		root:   root,
		cfg:    cfg,
		logger: zap.NewNop(),
		docs:   docstore.NewStore(),
		hashes: make(map[uri.URI]string),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.index = index.New(index.WithLogger(w.logger))
	w.resolver = resolve.New(w.index, w)
	return w, nil
}

// Root returns the workspace's project root path.
func (w *Workspace) Root() string { return w.root }

// Index returns the underlying symbol index for direct access.
func (w *Workspace) Index() *index.Index { return w.index }

// Documents returns the open-buffer store.
func (w *Workspace) Documents() *docstore.Store { return w.docs }
