package staging

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/telemetry"
)

// chainEntry is one work-commit visited while walking head -> base, kept
// in base-to-head order so later entries win on dedup.
type chainEntry struct {
	id model.ObjectID
	wc *model.WorkCommit
}

// walkChain collects every work-commit from stageHead back to (but not
// including) base, returning them oldest-first.
func (s *Session) walkChain(ctx context.Context, stageHead model.ObjectID) ([]chainEntry, model.ObjectID, error) {
	var entries []chainEntry
	cur := stageHead
	var base model.ObjectID
	for {
		wc, err := s.loadWorkCommit(ctx, cur)
		if err != nil {
			return nil, base, err
		}
		entries = append(entries, chainEntry{id: cur, wc: wc})
		base = wc.Base
		if wc.Parent.IsZero() {
			break
		}
		cur = wc.Parent
	}
	// entries is head-to-base; reverse to base-to-head (chain order) so
	// dedup-by-last-wins reflects the order flushes actually happened in.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, base, nil
}

// CompactResult is what compaction computed, prior to the caller deciding
// where to store the new canonical commit (Repository.CompactSession owns
// that, since it also needs to merge the new tree against the prior
// canonical tree).
type CompactResult struct {
	FileVersions  map[model.NodeID]*model.FileVersion
	EdgeBatchIDs  []model.ObjectID
	NarrativeRefs []model.NarrativeRef
	WorkCommitIDs []model.ObjectID
}

// Compact walks the staging chain and folds it per spec.md §4.5: dedup
// FileVersions per file_id (last wins by chain order), collect edge
// batches to merge, and snapshot the final narrative_refs per (path,
// stream) (also last wins).
func (s *Session) Compact(ctx context.Context) (*CompactResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.staging.compact")
	defer span.End()

	stageHead, present, err := s.refs.Stage()
	if err != nil {
		return nil, fmt.Errorf("staging: read stage: %w", err)
	}
	if !present {
		return nil, ctxerr.New(ctxerr.KindNoActiveSession, "compact_session", "", fmt.Errorf("no STAGE pointer present"))
	}

	entries, _, err := s.walkChain(ctx, stageHead)
	if err != nil {
		return nil, err
	}

	result := &CompactResult{FileVersions: map[model.NodeID]*model.FileVersion{}}
	narrativeByKey := map[[2]string]model.NarrativeRef{}

	for _, e := range entries {
		result.WorkCommitIDs = append(result.WorkCommitIDs, e.id)

		switch e.wc.StepKind {
		case model.StepFileWrite:
			for _, pid := range e.wc.Payload {
				fv, err := s.loadFileVersion(ctx, pid)
				if err != nil {
					return nil, err
				}
				result.FileVersions[fv.FileID] = fv // last wins: later chain entries overwrite
			}
		case model.StepRelations:
			result.EdgeBatchIDs = append(result.EdgeBatchIDs, e.wc.Payload...)
		}

		for _, nr := range e.wc.NarrativeRefs {
			narrativeByKey[[2]string{nr.Path, nr.Stream}] = nr
		}
	}

	for _, nr := range narrativeByKey {
		result.NarrativeRefs = append(result.NarrativeRefs, nr)
	}
	sort.Slice(result.NarrativeRefs, func(i, j int) bool {
		a, b := result.NarrativeRefs[i], result.NarrativeRefs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Stream < b.Stream
	})
	return result, nil
}

func (s *Session) loadFileVersion(ctx context.Context, id model.ObjectID) (*model.FileVersion, error) {
	raw, err := s.store.GetBlob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("staging: load file version blob %s: %w", id, err)
	}
	fv, err := model.DecodeFileVersion(raw)
	if err != nil {
		return nil, fmt.Errorf("staging: decode file version %s: %w", id, err)
	}
	return fv, nil
}
