// Package gc implements the reachability mark phase, grace-period sweep,
// and store integrity verification (spec.md §4.9).
package gc

import (
	"context"
	"fmt"

	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/refs"
)

// mark walks every object transitively reachable from canonical head and,
// if present, the staging pointer, following Commit.parents/root_tree/
// edge_batches/narrative_refs[*].blob_id/*_snapshot, Tree.entries[*].id,
// WorkCommit.parent/base/payload/narrative_refs, and the ObjectId-carrying
// fields nested inside the typed entities those payloads point to
// (FileVersion.blob_id, Edge.Evidence.blob_id), so nothing a ref can still
// reach is ever swept regardless of grace period.
func mark(ctx context.Context, store *objstore.Store, refStore *refs.Store) (map[model.ObjectID]bool, error) {
	seen := make(map[model.ObjectID]bool)

	head, err := refStore.Head()
	if err != nil {
		return nil, fmt.Errorf("gc: read head: %w", err)
	}
	if !head.IsZero() {
		if err := markCommitChain(ctx, store, seen, head); err != nil {
			return nil, err
		}
	}

	// The staging pointer (if any) names a WorkCommit, not a Commit; its
	// own chain walk reaches its Base commit independently.
	if stage, present, err := refStore.Stage(); err != nil {
		return nil, fmt.Errorf("gc: read stage: %w", err)
	} else if present && !stage.IsZero() {
		if err := markWorkCommitChain(ctx, store, seen, stage); err != nil {
			return nil, err
		}
	}
	return seen, nil
}

func markCommitChain(ctx context.Context, store *objstore.Store, seen map[model.ObjectID]bool, id model.ObjectID) error {
	if id.IsZero() || seen[id] {
		return nil
	}
	v, err := store.GetTyped(ctx, id)
	if err != nil {
		return fmt.Errorf("gc: load commit %s: %w", id, err)
	}
	c, ok := v.(*model.Commit)
	if !ok {
		return fmt.Errorf("gc: object %s is not a Commit", id)
	}
	seen[id] = true

	for _, p := range c.Parents {
		if err := markCommitChain(ctx, store, seen, p); err != nil {
			return err
		}
	}
	if err := markTree(ctx, store, seen, c.RootTree); err != nil {
		return err
	}
	for _, eb := range c.EdgeBatches {
		if err := markEdgeBatch(ctx, store, seen, eb); err != nil {
			return err
		}
	}
	for _, nr := range c.NarrativeRefs {
		markBlob(seen, nr.BlobID)
	}
	if c.HasBuildGraphSnapshot {
		markBlob(seen, c.BuildGraphSnapshot)
	}
	if c.HasSemanticGraphSnapshot {
		markBlob(seen, c.SemanticGraphSnapshot)
	}
	if c.HasDiagnosticsSnapshot {
		markBlob(seen, c.DiagnosticsSnapshot)
	}
	return nil
}

func markTree(ctx context.Context, store *objstore.Store, seen map[model.ObjectID]bool, id model.ObjectID) error {
	if id.IsZero() || seen[id] {
		return nil
	}
	v, err := store.GetTyped(ctx, id)
	if err != nil {
		return fmt.Errorf("gc: load tree %s: %w", id, err)
	}
	t, ok := v.(*model.Tree)
	if !ok {
		return fmt.Errorf("gc: object %s is not a Tree", id)
	}
	seen[id] = true

	for _, e := range t.Entries {
		if e.Kind == model.KindTyped {
			if err := markTree(ctx, store, seen, e.ID); err != nil {
				return err
			}
			continue
		}
		markBlob(seen, e.ID)
	}
	return nil
}

func markEdgeBatch(ctx context.Context, store *objstore.Store, seen map[model.ObjectID]bool, id model.ObjectID) error {
	if id.IsZero() || seen[id] {
		return nil
	}
	v, err := store.GetTyped(ctx, id)
	if err != nil {
		return fmt.Errorf("gc: load edge batch %s: %w", id, err)
	}
	batch, ok := v.(*model.EdgeBatch)
	if !ok {
		return fmt.Errorf("gc: object %s is not an EdgeBatch", id)
	}
	seen[id] = true

	for _, e := range batch.Edges {
		if e.Evidence.HasBlobID {
			markBlob(seen, e.Evidence.BlobID)
		}
	}
	return nil
}

func markWorkCommitChain(ctx context.Context, store *objstore.Store, seen map[model.ObjectID]bool, id model.ObjectID) error {
	if id.IsZero() || seen[id] {
		return nil
	}
	v, err := store.GetTyped(ctx, id)
	if err != nil {
		return fmt.Errorf("gc: load work-commit %s: %w", id, err)
	}
	wc, ok := v.(*model.WorkCommit)
	if !ok {
		return fmt.Errorf("gc: object %s is not a WorkCommit", id)
	}
	seen[id] = true

	if err := markCommitChain(ctx, store, seen, wc.Base); err != nil {
		return err
	}
	if err := markWorkCommitChain(ctx, store, seen, wc.Parent); err != nil {
		return err
	}
	for _, nr := range wc.NarrativeRefs {
		markBlob(seen, nr.BlobID)
	}
	for _, pid := range wc.Payload {
		if err := markPayloadObject(ctx, store, seen, wc.StepKind, pid); err != nil {
			return err
		}
	}
	return nil
}

// markPayloadObject marks a WorkCommit payload entry and, where its step
// kind identifies a decodable typed payload, the ObjectIds nested inside
// it: a StepFileWrite/StepFileRead entry is a FileVersion naming a content
// blob, a StepRelations entry is an EdgeBatch.
func markPayloadObject(ctx context.Context, store *objstore.Store, seen map[model.ObjectID]bool, stepKind model.StepKind, id model.ObjectID) error {
	if id.IsZero() || seen[id] {
		return nil
	}
	switch stepKind {
	case model.StepFileWrite, model.StepFileRead:
		raw, err := store.GetBlob(ctx, id)
		if err != nil {
			return fmt.Errorf("gc: load file version %s: %w", id, err)
		}
		seen[id] = true
		fv, err := model.DecodeFileVersion(raw)
		if err != nil {
			return fmt.Errorf("gc: decode file version %s: %w", id, err)
		}
		markBlob(seen, fv.BlobID)
		return nil
	case model.StepRelations:
		return markEdgeBatch(ctx, store, seen, id)
	default:
		markBlob(seen, id)
		return nil
	}
}

func markBlob(seen map[model.ObjectID]bool, id model.ObjectID) {
	if !id.IsZero() {
		seen[id] = true
	}
}
