// Package graph builds and reconstructs the relationship graph: edge-batch
// validation, forward/reverse adjacency, and the Tarjan SCC-DAG view used to
// bound retrieval expansion (spec.md §4.4).
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
)

// CommitSource resolves a typed object id to its decoded value. Both
// objstore.Store and any caching wrapper around it satisfy this, so walk.go
// stays independent of the concrete store implementation.
type CommitSource interface {
	GetTyped(ctx context.Context, id model.ObjectID) (any, error)
}

// WalkAncestors returns every commit reachable from heads, in
// ancestor-first topological order (parents before children, ties broken
// by id), so that callers folding state commit-by-commit (index rebuild,
// adjacency reconstruction, ancestry checks) see a deterministic order.
func WalkAncestors(ctx context.Context, src CommitSource, heads []model.ObjectID) ([]model.ObjectID, map[model.ObjectID]*model.Commit, error) {
	commits := make(map[model.ObjectID]*model.Commit)
	var load func(id model.ObjectID) error
	load = func(id model.ObjectID) error {
		if _, ok := commits[id]; ok {
			return nil
		}
		v, err := src.GetTyped(ctx, id)
		if err != nil {
			return fmt.Errorf("graph: load commit %s: %w", id, err)
		}
		c, ok := v.(*model.Commit)
		if !ok {
			return ctxerr.New(ctxerr.KindCommitOrphan, "walk_ancestors", id.String(), fmt.Errorf("object is not a Commit"))
		}
		commits[id] = c
		for _, p := range c.Parents {
			if err := load(p); err != nil {
				return err
			}
		}
		return nil
	}
	for _, h := range heads {
		if err := load(h); err != nil {
			return nil, nil, err
		}
	}

	// Kahn-style rounds over the in-memory commit set: each round emits
	// every commit whose parents have all been emitted, ties broken
	// lexicographically by id so the order is a pure function of the
	// object store contents.
	childCount := make(map[model.ObjectID]int)
	for id := range commits {
		childCount[id] = 0
	}
	for _, c := range commits {
		for _, p := range c.Parents {
			childCount[p]++
		}
	}
	// We want ancestor-first: a commit is ready once all its parents have
	// been emitted.
	emitted := make(map[model.ObjectID]bool)
	remaining := make(map[model.ObjectID]*model.Commit, len(commits))
	for id, c := range commits {
		remaining[id] = c
	}
	var order []model.ObjectID
	for len(remaining) > 0 {
		var ready []model.ObjectID
		for id, c := range remaining {
			ok := true
			for _, p := range c.Parents {
				if !emitted[p] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			// A cycle would mean corrupted ancestry; surface it rather
			// than looping forever.
			return nil, nil, ctxerr.New(ctxerr.KindCommitOrphan, "walk_ancestors", "", fmt.Errorf("cycle or missing parent detected among %d commits", len(remaining)))
		}
		sort.Slice(ready, func(i, j int) bool { return ready[i].String() < ready[j].String() })
		for _, id := range ready {
			order = append(order, id)
			emitted[id] = true
			delete(remaining, id)
		}
	}
	return order, commits, nil
}

// CollectEdgeBatchIDs returns the distinct edge batch ids referenced by a
// set of commits, in commit-order-then-position order.
func CollectEdgeBatchIDs(order []model.ObjectID, commits map[model.ObjectID]*model.Commit) []model.ObjectID {
	seen := make(map[model.ObjectID]bool)
	var ids []model.ObjectID
	for _, cid := range order {
		c := commits[cid]
		for _, eb := range c.EdgeBatches {
			if !seen[eb] {
				seen[eb] = true
				ids = append(ids, eb)
			}
		}
	}
	return ids
}
