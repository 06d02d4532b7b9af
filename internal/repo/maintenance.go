package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/agentctx/ctx/internal/gc"
	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
)

// RebuildIndex recomputes the derived index per mode (spec.md §6.3
// rebuild_index(mode)). The repository's index handle is closed and
// replaced, since index.Rebuild opens a fresh bbolt database handle.
func (r *Repository) RebuildIndex(ctx context.Context, mode index.Mode) error {
	head, err := r.Refs.Head()
	if err != nil {
		return fmt.Errorf("repo: read head for index rebuild: %w", err)
	}
	if err := r.Index.Close(); err != nil {
		return fmt.Errorf("repo: close index before rebuild: %w", err)
	}
	ix, err := index.Rebuild(ctx, r.Store, filepath.Join(r.root, "index"), []model.ObjectID{head}, mode)
	if err != nil {
		return fmt.Errorf("repo: rebuild index: %w", err)
	}
	r.Index = ix
	if r.retrievalDeps.Store != nil {
		r.retrievalDeps.Index = ix
	}
	return nil
}

// GC runs one mark-and-sweep pass (spec.md §6.3 gc(options), §4.9).
func (r *Repository) GC(ctx context.Context, opts gc.Options, now time.Time) (gc.Result, error) {
	return gc.Run(ctx, r.Store, r.Refs, opts, now)
}

// Verify checks every object's content-addressed integrity, and
// optionally its reachability from canonical head (spec.md §6.3
// verify(options), §4.9).
func (r *Repository) Verify(ctx context.Context, opts gc.VerifyOptions) (gc.VerifyResult, error) {
	return gc.Verify(ctx, r.Store, r.Refs, opts)
}
