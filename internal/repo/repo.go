// Package repo is the repository façade (spec.md §4.8): it opens or
// initializes a repository rooted at a path, creates the on-disk layout,
// wires the object store, refs, graph, index, and staging layers
// together, and exposes the library API of spec.md §6.3 as one handle.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/refs"
	"github.com/agentctx/ctx/internal/retrieval"
	"github.com/agentctx/ctx/internal/staging"
	"github.com/agentctx/ctx/internal/telemetry"
)

const dotDir = ".ctx"

// Repository is the opened handle bundling every layer spec.md §2
// describes, plus the advisory lock held for the process's lifetime.
type Repository struct {
	root string // <repo>/.ctx

	Store *objstore.Store
	Refs  *refs.Store
	Index *index.Index
	cfg   Config

	lock    *refs.Lock
	session *staging.Session

	retrievalDeps retrieval.Deps // lazily initialized, caches SccView decodes across BuildPack calls
}

func layoutDirs(root string) []string {
	return []string{
		root,
		filepath.Join(root, "objects"),
		filepath.Join(root, "refs"),
		filepath.Join(root, "narrative"),
		filepath.Join(root, "index"),
		filepath.Join(root, "DERIVED"),
	}
}

// Init creates a new repository at path (spec.md §4.8 "On init"): the
// on-disk layout, a default configuration, and an initial empty commit
// set as canonical head.
func Init(ctx context.Context, path string, cfg Config) (*Repository, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.repo.init")
	defer span.End()

	root := filepath.Join(path, dotDir)
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("repo: %s already initialized", root)
	}
	for _, d := range layoutDirs(root) {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("repo: create layout dir %s: %w", d, err)
		}
	}
	if err := SaveConfig(root, cfg); err != nil {
		return nil, err
	}

	store, err := objstore.Open(filepath.Join(root, "objects"), objstore.Options{
		ShardPrefixBytes: cfg.Storage.ShardPrefixBytes,
		CompressionLevel: objstore.CompressionLevel(cfg.Storage.CompressionLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("repo: open object store: %w", err)
	}
	refStore := refs.Open(root)

	emptyTree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, emptyTree)
	if err != nil {
		return nil, fmt.Errorf("repo: store initial tree: %w", err)
	}
	initial := model.Commit{RootTree: treeID}
	commitID, err := store.PutTyped(ctx, initial)
	if err != nil {
		return nil, fmt.Errorf("repo: store initial commit: %w", err)
	}
	if err := refStore.SetHead(commitID); err != nil {
		return nil, fmt.Errorf("repo: set initial head: %w", err)
	}

	ix, err := index.Rebuild(ctx, store, filepath.Join(root, "index"), []model.ObjectID{commitID}, index.Full)
	if err != nil {
		return nil, fmt.Errorf("repo: build initial index: %w", err)
	}

	return &Repository{root: root, Store: store, Refs: refStore, Index: ix, cfg: cfg, session: staging.New(store, refStore)}, nil
}

// Open opens an existing repository (spec.md §4.8 "On open"): validates
// the layout, acquires the advisory writer lock, runs staging recovery,
// and lazily rebuilds the index if it is missing.
func Open(ctx context.Context, path string) (*Repository, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.repo.open")
	defer span.End()

	root := filepath.Join(path, dotDir)
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("repo: %s is not an initialized repository: %w", root, err)
	}
	refStore := refs.Open(root)
	lock, err := refs.AcquireExclusive(ctx, refStore)
	if err != nil {
		return nil, err
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		lock.Release()
		return nil, err
	}
	store, err := objstore.Open(filepath.Join(root, "objects"), objstore.Options{
		ShardPrefixBytes: cfg.Storage.ShardPrefixBytes,
		CompressionLevel: objstore.CompressionLevel(cfg.Storage.CompressionLevel),
	})
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("repo: open object store: %w", err)
	}

	indexDir := filepath.Join(root, "index")
	ix, err := openOrRebuildIndex(ctx, store, refStore, indexDir)
	if err != nil {
		lock.Release()
		return nil, err
	}

	r := &Repository{root: root, Store: store, Refs: refStore, Index: ix, cfg: cfg, lock: lock}

	session := staging.New(store, refStore)
	if _, err := session.Recover(ctx, r.isAncestor); err != nil {
		r.Close()
		return nil, fmt.Errorf("repo: recover staging: %w", err)
	}
	r.session = session

	return r, nil
}

func openOrRebuildIndex(ctx context.Context, store *objstore.Store, refStore *refs.Store, indexDir string) (*index.Index, error) {
	if _, err := os.Stat(filepath.Join(indexDir, "ctx.index")); err == nil {
		return index.Open(indexDir)
	}
	head, err := refStore.Head()
	if err != nil {
		return nil, fmt.Errorf("repo: read head for index rebuild: %w", err)
	}
	return index.Rebuild(ctx, store, indexDir, []model.ObjectID{head}, index.Full)
}

// Close releases the advisory lock and the index database handle.
func (r *Repository) Close() error {
	var err error
	if r.Index != nil {
		err = r.Index.Close()
	}
	if r.lock != nil {
		if lerr := r.lock.Release(); lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}

// Config returns the loaded configuration.
func (r *Repository) Config() Config { return r.cfg }

// Root returns the <repo>/.ctx directory this handle is rooted at.
func (r *Repository) Root() string { return r.root }
