package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/agentctx/ctx/internal/graph"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
)

// maxConcurrentLoads bounds how many objects rebuildScc fetches from the
// store at once; unbounded fan-out over a large edge-batch set would open
// one goroutine and one store read per batch simultaneously.
const maxConcurrentLoads = 16

// Mode selects how much of the index rebuild runs (spec.md §6.3).
type Mode uint8

const (
	Full Mode = iota
	Incremental
	SccOnly
	// FullTextOnly recomputes the Path/Name tables, which double as this
	// store's token-searchable index; there is no separate full-text
	// engine table in spec.md §4.6's six-table list.
	FullTextOnly
)

// Rebuild recomputes the index from the object store, purely as a
// function of it (spec.md §4.6). Full deletes and recreates the index
// directory first; Incremental resumes from the last indexed head;
// SccOnly and FullTextOnly recompute only their named table and leave the
// rest untouched.
func Rebuild(ctx context.Context, store *objstore.Store, indexDir string, heads []model.ObjectID, mode Mode) (*Index, error) {
	if mode == Full {
		if err := os.RemoveAll(indexDir); err != nil {
			return nil, fmt.Errorf("index: remove old index dir: %w", err)
		}
	}
	ix, err := Open(indexDir)
	if err != nil {
		return nil, err
	}

	order, commits, err := graph.WalkAncestors(ctx, store, heads)
	if err != nil {
		ix.Close()
		return nil, err
	}

	// Adjacency and the SCC view are unions over every reachable edge
	// batch, so they are always recomputed from the full ancestor set.
	ancestors := order
	if mode == Incremental {
		if last, ok, err := ix.LastIndexedHead(); err == nil && ok {
			order = remainingAfter(order, commits, last)
		}
	}

	if mode == Full || mode == Incremental || mode == FullTextOnly {
		for _, cid := range order {
			if err := indexCommit(ctx, ix, store, cid, commits[cid]); err != nil {
				ix.Close()
				return nil, err
			}
		}
	}

	if mode == Full || mode == Incremental || mode == SccOnly {
		if err := rebuildScc(ctx, ix, store, ancestors, commits); err != nil {
			ix.Close()
			return nil, err
		}
	}

	if len(order) > 0 {
		if err := ix.SetLastIndexedHead(order[len(order)-1]); err != nil {
			ix.Close()
			return nil, err
		}
	}
	return ix, nil
}

// remainingAfter trims order down to commits not yet reflected by last,
// i.e. last and its ancestors are dropped. last itself and everything
// before it in ancestor-first order is considered already indexed.
func remainingAfter(order []model.ObjectID, commits map[model.ObjectID]*model.Commit, last model.ObjectID) []model.ObjectID {
	cut := -1
	for i, id := range order {
		if id == last {
			cut = i
			break
		}
	}
	if cut < 0 {
		return order // last not found among ancestors: index is stale enough to redo everything seen
	}
	return order[cut+1:]
}

func indexCommit(ctx context.Context, ix *Index, store *objstore.Store, cid model.ObjectID, c *model.Commit) error {
	v, err := store.GetTyped(ctx, c.RootTree)
	if err != nil {
		return fmt.Errorf("index: load root tree for commit %s: %w", cid, err)
	}
	tree, ok := v.(*model.Tree)
	if !ok {
		return fmt.Errorf("index: commit %s root_tree is not a Tree", cid)
	}
	fileBlobs := map[string]model.ObjectID{}
	if err := indexTree(ctx, ix, store, "", tree, fileBlobs); err != nil {
		return err
	}

	for _, eb := range c.EdgeBatches {
		if err := ix.PutEdgeBatchOfCommit(eb, cid); err != nil {
			return err
		}
	}

	return ix.mergeSnapshotPointers(cid, func(p *SnapshotPointers) { p.FileBlobs = fileBlobs })
}

// indexTree walks a Tree's entries, indexing files by their normalized
// path under a stable, path-derived node id, and records each file's
// current blob id in fileBlobs so the commit's snapshot pointers can map
// identity to content. Nested trees (subdirectories/modules) recurse with
// an extended prefix.
func indexTree(ctx context.Context, ix *Index, store *objstore.Store, prefix string, tree *model.Tree, fileBlobs map[string]model.ObjectID) error {
	for _, e := range tree.Entries {
		relPath := e.Name
		if prefix != "" {
			relPath = filepath.ToSlash(filepath.Join(prefix, e.Name))
		}
		if e.Kind == model.KindTyped {
			v, err := store.GetTyped(ctx, e.ID)
			if err != nil {
				return fmt.Errorf("index: load subtree %q: %w", relPath, err)
			}
			sub, ok := v.(*model.Tree)
			if !ok {
				return fmt.Errorf("index: entry %q is not a Tree", relPath)
			}
			if err := indexTree(ctx, ix, store, relPath, sub, fileBlobs); err != nil {
				return err
			}
			continue
		}
		normalized := model.NormalizePath(relPath)
		file := model.FileNodeID(normalized)
		if err := ix.PutPath(normalized, file); err != nil {
			return err
		}
		existing, err := ix.GetName("file", e.Name)
		if err != nil {
			return err
		}
		if err := ix.PutName("file", e.Name, appendObjectIDUnique(existing, file.ID)); err != nil {
			return err
		}
		fileBlobs[file.String()] = e.ID
	}
	return nil
}

// appendObjectIDUnique appends id to existing, preserving order and
// skipping it if already present, so the Name table accumulates every
// distinct file sharing a basename instead of losing earlier entries to
// later ones indexed in the same walk.
func appendObjectIDUnique(existing []model.ObjectID, id model.ObjectID) []model.ObjectID {
	for _, e := range existing {
		if e == id {
			return existing
		}
	}
	return append(existing, id)
}

func rebuildScc(ctx context.Context, ix *Index, store *objstore.Store, order []model.ObjectID, commits map[model.ObjectID]*model.Commit) error {
	batchIDs := graph.CollectEdgeBatchIDs(order, commits)
	batches := make([]*model.EdgeBatch, len(batchIDs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentLoads)
	for i, id := range batchIDs {
		i, id := i, id
		group.Go(func() error {
			v, err := store.GetTyped(groupCtx, id)
			if err != nil {
				return fmt.Errorf("index: load edge batch %s: %w", id, err)
			}
			eb, ok := v.(*model.EdgeBatch)
			if !ok {
				return fmt.Errorf("index: object %s is not an EdgeBatch", id)
			}
			batches[i] = eb
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	adj := graph.BuildAdjacency(batches)
	nodes := graph.Nodes(batches)
	for k, targets := range adj.Forward {
		if err := ix.PutAdjacency(uint8(graph.Forward), k.Node, uint8(k.Label), targets); err != nil {
			return err
		}
	}
	for k, targets := range adj.Backward {
		if err := ix.PutAdjacency(uint8(graph.Backward), k.Node, uint8(k.Label), targets); err != nil {
			return err
		}
	}

	view := graph.ComputeSCC(nodes, adj)
	if len(order) == 0 {
		return nil
	}
	head := order[len(order)-1]
	id, err := store.PutTyped(ctx, view)
	if err != nil {
		return fmt.Errorf("index: store scc view: %w", err)
	}
	return ix.mergeSnapshotPointers(head, func(p *SnapshotPointers) { p.SccViewID = id })
}
