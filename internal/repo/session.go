package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/staging"
)

// StartSession begins a new session against canonical head (spec.md §6.3
// start_session). sessionID may be empty, in which case the repository
// mints one (a random uuid) and returns it as the session handle; callers
// that already have their own scheme (an orchestrator's run id, an
// imported transcript's session_id) pass it through unchanged.
func (r *Repository) StartSession(ctx context.Context, sessionID string, now time.Time) (string, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if err := r.session.Start(ctx, sessionID, now.Unix()); err != nil {
		return "", err
	}
	return sessionID, nil
}

// ActiveSession reports the in-memory state of the current session, if
// any is active.
func (r *Repository) ActiveSession() model.SessionState {
	return r.session.ActiveState()
}

// SetSessionState applies a named transition to the active session.
func (r *Repository) SetSessionState(t staging.Transition, payload any) error {
	return r.session.SetState(t, payload)
}

// FlushActiveSession appends one work-commit from the session's buffered
// observations (spec.md §6.3 flush_active_session).
func (r *Repository) FlushActiveSession(ctx context.Context, stepKind model.StepKind, now time.Time) (model.ObjectID, error) {
	return r.session.Flush(ctx, stepKind, now.Unix())
}

// AbortSession transitions the active session to Aborted and flushes a
// final work-commit recording it, without compacting.
func (r *Repository) AbortSession(ctx context.Context, reason string, now time.Time) error {
	if err := r.session.SetState(staging.TransitionAbort, reason); err != nil {
		return err
	}
	_, err := r.session.Flush(ctx, model.StepNote, now.Unix())
	return err
}

// CheckStaleSession reports idle status against the configured
// thresholds (spec.md §6.3 check_stale_session), given the timestamp of
// the active session's last flush.
func (r *Repository) CheckStaleSession(lastActivity, now time.Time) staging.StaleStatus {
	policy := staging.StalePolicy{
		AskThreshold:         time.Duration(r.cfg.Session.AskThresholdHours) * time.Hour,
		AutoCompactThreshold: time.Duration(r.cfg.Session.AutoCompactThresholdHours) * time.Hour,
	}
	return staging.CheckStale(now.Sub(lastActivity), policy)
}

// RecoverSession re-runs staging recovery against the current canonical
// head (spec.md §6.3 recover_session), useful after an external process
// advanced HEAD.
func (r *Repository) RecoverSession(ctx context.Context) (staging.RecoveryOutcome, error) {
	return r.session.Recover(ctx, r.isAncestor)
}

// CompactSession folds the staging chain into a new canonical commit
// (spec.md §4.5/§6.3 compact_session): it merges the compacted
// FileVersions into a new root tree layered over the prior canonical
// tree, merges in the collected edge batches, and snapshots the final
// narrative refs, then advances HEAD, clears STAGE, and applies an
// incremental index update for the new head so retrieval (spec.md §2
// "Retrieval reads committed state through the index") sees the just-
// committed content without a separate rebuild_index call.
func (r *Repository) CompactSession(ctx context.Context, message string, now time.Time) (model.ObjectID, error) {
	result, err := r.session.Compact(ctx)
	if err != nil {
		return model.ObjectID{}, err
	}

	head, err := r.Refs.Head()
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("repo: read head for compaction: %w", err)
	}
	headCommit, err := r.loadCommit(ctx, head)
	if err != nil {
		return model.ObjectID{}, err
	}
	baseTree, err := r.loadTree(ctx, headCommit.RootTree)
	if err != nil {
		return model.ObjectID{}, err
	}

	newTree, err := overlayFileVersions(ctx, r.Store, *baseTree, result.FileVersions)
	if err != nil {
		return model.ObjectID{}, err
	}
	treeID, err := r.Store.PutTyped(ctx, newTree)
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("repo: store compacted tree: %w", err)
	}

	commit := model.Commit{
		Parents:       []model.ObjectID{head},
		Timestamp:     now.Unix(),
		Message:       message,
		RootTree:      treeID,
		EdgeBatches:   result.EdgeBatchIDs,
		NarrativeRefs: result.NarrativeRefs,
	}
	commitID, err := r.Store.PutTyped(ctx, commit)
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("repo: store compacted commit: %w", err)
	}
	if err := r.Refs.SetHead(commitID); err != nil {
		return model.ObjectID{}, fmt.Errorf("repo: advance head: %w", err)
	}
	if err := r.Refs.DeleteStage(); err != nil {
		return model.ObjectID{}, fmt.Errorf("repo: clear stage: %w", err)
	}
	if err := r.RebuildIndex(ctx, index.Incremental); err != nil {
		return model.ObjectID{}, fmt.Errorf("repo: index compacted head: %w", err)
	}
	return commitID, nil
}

func (r *Repository) loadCommit(ctx context.Context, id model.ObjectID) (*model.Commit, error) {
	v, err := r.Store.GetTyped(ctx, id)
	if err != nil {
		return nil, ctxerr.New(ctxerr.KindObjectNotFound, "compact_session", id.String(), err)
	}
	c, ok := v.(*model.Commit)
	if !ok {
		return nil, fmt.Errorf("repo: object %s is not a Commit", id)
	}
	return c, nil
}

func (r *Repository) loadTree(ctx context.Context, id model.ObjectID) (*model.Tree, error) {
	v, err := r.Store.GetTyped(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("repo: load tree %s: %w", id, err)
	}
	t, ok := v.(*model.Tree)
	if !ok {
		return nil, fmt.Errorf("repo: object %s is not a Tree", id)
	}
	return t, nil
}
