package staging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/refs"
)

func TestCheckStale(t *testing.T) {
	policy := DefaultStalePolicy()
	require.Equal(t, StaleNone, CheckStale(time.Hour, policy))
	require.Equal(t, StaleShouldAsk, CheckStale(25*time.Hour, policy))
	require.Equal(t, StaleAutoCompacted, CheckStale(8*24*time.Hour, policy))
}

func TestTransitionTable(t *testing.T) {
	running := model.RunningState()

	asking, err := Next(running, TransitionAsk, AskPayload{Question: "ok?", AskedAt: 1})
	require.NoError(t, err)
	require.Equal(t, model.StateAwaitingUser, asking.Tag)

	backToRunning, err := Next(asking, TransitionRespond, nil)
	require.NoError(t, err)
	require.Equal(t, model.StateRunning, backToRunning.Tag)

	_, err = Next(asking, TransitionFinish, "done")
	require.True(t, ctxerr.Is(err, ctxerr.KindInvalidStateTransition))

	pending, err := Next(running, TransitionFinish, "summary")
	require.NoError(t, err)
	complete, err := Next(pending, TransitionConfirm, nil)
	require.NoError(t, err)
	require.Equal(t, model.StateComplete, complete.Tag)

	_, err = Next(complete, TransitionAbort, "x")
	require.True(t, ctxerr.Is(err, ctxerr.KindInvalidStateTransition))
}

func newTestSession(t *testing.T) (*Session, *objstore.Store, *refs.Store) {
	t.Helper()
	store, err := objstore.Open(t.TempDir(), objstore.DefaultOptions())
	require.NoError(t, err)
	refStore := refs.Open(t.TempDir())

	ctx := context.Background()
	tree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	initial := model.Commit{Timestamp: 0, Message: "initial"}
	initial.RootTree = treeID
	commitID, err := store.PutTyped(ctx, initial)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(commitID))

	return New(store, refStore), store, refStore
}

func TestStartFlushIsIdempotentOnEmptyBuffer(t *testing.T) {
	ctx := context.Background()
	s, _, refStore := newTestSession(t)
	require.NoError(t, s.Start(ctx, "sess-1", 100))

	id1, err := s.Flush(ctx, "", 101)
	require.NoError(t, err)
	id2, err := s.Flush(ctx, "", 102)
	require.NoError(t, err)
	require.Equal(t, id1, id2) // no artifacts, no state change: flush writes nothing new

	stage, present, err := refStore.Stage()
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, id2, stage)
}

func TestObserveFileWriteThenCompactDedupsLastWins(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Start(ctx, "sess-1", 0))

	file := model.FileNodeID("src/a.go")
	_, err := s.ObserveFileWrite(ctx, "src/a.go", []byte("v1"), DefaultStepBudget())
	require.NoError(t, err)
	_, err = s.Flush(ctx, model.StepFileWrite, 1)
	require.NoError(t, err)

	_, err = s.ObserveFileWrite(ctx, "src/a.go", []byte("v2 longer"), DefaultStepBudget())
	require.NoError(t, err)
	_, err = s.Flush(ctx, model.StepFileWrite, 2)
	require.NoError(t, err)

	result, err := s.Compact(ctx)
	require.NoError(t, err)
	require.Len(t, result.FileVersions, 1)
	require.EqualValues(t, len("v2 longer"), result.FileVersions[file].ByteCount)
}

func TestObserveFileWriteRejectsOversizedContent(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Start(ctx, "sess-1", 0))

	_, err := s.ObserveFileWrite(ctx, "src/a.go", []byte("too big"), StepBudget{MaxBytes: 1})
	require.True(t, ctxerr.Is(err, ctxerr.KindBudgetExceeded))
}

func TestCompactWithNoSessionFails(t *testing.T) {
	s, _, _ := newTestSession(t)
	_, err := s.Compact(context.Background())
	require.True(t, ctxerr.Is(err, ctxerr.KindNoActiveSession))
}

func TestExportImportRoundTripPreservesChain(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Start(ctx, "sess-1", 0))
	_, err := s.ObserveFileWrite(ctx, "src/a.go", []byte("v1"), DefaultStepBudget())
	require.NoError(t, err)
	_, err = s.Flush(ctx, model.StepFileWrite, 1)
	require.NoError(t, err)

	exported, err := s.Export(ctx)
	require.NoError(t, err)
	require.Len(t, exported.Entries, 2) // the Start entry plus the flushed write
	require.NotEmpty(t, exported.Entries[1].Payload)

	// Import into a fresh store/session pointed at its own (independent)
	// canonical head, the way a transcript moved to a different clone would.
	target, _, targetRefs := newTestSession(t)
	head, err := targetRefs.Head()
	require.NoError(t, err)
	exported.Base = head.String()

	require.NoError(t, target.Import(ctx, exported))
	stage, present, err := targetRefs.Stage()
	require.NoError(t, err)
	require.True(t, present)
	require.False(t, stage.IsZero())

	result, err := target.Compact(ctx)
	require.NoError(t, err)
	require.Len(t, result.FileVersions, 1)
	require.EqualValues(t, len("v1"), result.FileVersions[model.FileNodeID("src/a.go")].ByteCount)
}

func TestImportRefusesWhenSessionAlreadyActive(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Start(ctx, "sess-1", 0))

	exported, err := s.Export(ctx)
	require.NoError(t, err)

	err = s.Import(ctx, exported)
	require.True(t, ctxerr.Is(err, ctxerr.KindStagingConflict))
}

func TestRecoverResetsOnBaseMismatch(t *testing.T) {
	ctx := context.Background()
	s, store, refStore := newTestSession(t)
	require.NoError(t, s.Start(ctx, "sess-1", 0))
	_, err := s.Flush(ctx, "", 1)
	require.NoError(t, err)

	// Advance canonical head independently, simulating another session's
	// compaction landing while this one's STAGE pointer still points at
	// the old base.
	tree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	newCommit := model.Commit{Timestamp: 5, RootTree: treeID}
	newCommitID, err := store.PutTyped(ctx, newCommit)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(newCommitID))

	outcome, err := New(store, refStore).Recover(ctx, nil)
	require.NoError(t, err)
	require.True(t, outcome.Reset)

	_, present, err := refStore.Stage()
	require.NoError(t, err)
	require.False(t, present)
}
