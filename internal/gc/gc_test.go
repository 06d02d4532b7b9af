package gc

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/refs"
)

func newTestRepo(t *testing.T) (*objstore.Store, *refs.Store) {
	t.Helper()
	store, err := objstore.Open(t.TempDir(), objstore.DefaultOptions())
	require.NoError(t, err)
	refStore := refs.Open(t.TempDir())
	return store, refStore
}

func TestRunSweepsUnreachableObjectsPastGracePeriod(t *testing.T) {
	ctx := context.Background()
	store, refStore := newTestRepo(t)

	tree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	commit := model.Commit{RootTree: treeID}
	commitID, err := store.PutTyped(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(commitID))

	orphan, err := store.PutBlob(ctx, []byte("nobody references me"))
	require.NoError(t, err)
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(store.ObjectPath(orphan), old, old))

	result, err := Run(ctx, store, refStore, Options{KeepDays: 7}, time.Now())
	require.NoError(t, err)
	require.Contains(t, result.Swept, orphan)
	require.False(t, store.Exists(orphan))
	require.True(t, store.Exists(commitID))
	require.True(t, store.Exists(treeID))
}

func TestRunKeepsUnreachableObjectsWithinGracePeriod(t *testing.T) {
	ctx := context.Background()
	store, refStore := newTestRepo(t)

	tree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	commit := model.Commit{RootTree: treeID}
	commitID, err := store.PutTyped(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(commitID))

	recent, err := store.PutBlob(ctx, []byte("just orphaned"))
	require.NoError(t, err)

	result, err := Run(ctx, store, refStore, Options{KeepDays: 7}, time.Now())
	require.NoError(t, err)
	require.Contains(t, result.Kept, recent)
	require.Empty(t, result.Swept)
	require.True(t, store.Exists(recent))
}

func TestRunNeverSweepsContentReachableFromHead(t *testing.T) {
	ctx := context.Background()
	store, refStore := newTestRepo(t)

	blobID, err := store.PutBlob(ctx, []byte("hello"))
	require.NoError(t, err)
	tree := model.NewTree([]model.TreeEntry{{Name: "a.txt", Kind: model.KindBlob, ID: blobID}})
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	commit := model.Commit{RootTree: treeID}
	commitID, err := store.PutTyped(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(commitID))

	old := time.Now().Add(-30 * 24 * time.Hour)
	for _, id := range []model.ObjectID{blobID, treeID, commitID} {
		require.NoError(t, os.Chtimes(store.ObjectPath(id), old, old))
	}

	result, err := Run(ctx, store, refStore, Options{KeepDays: 7}, time.Now())
	require.NoError(t, err)
	require.Empty(t, result.Swept)
	require.True(t, store.Exists(blobID))
}

func TestDryRunReportsWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	store, refStore := newTestRepo(t)

	tree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	commit := model.Commit{RootTree: treeID}
	commitID, err := store.PutTyped(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(commitID))

	orphan, err := store.PutBlob(ctx, []byte("orphan"))
	require.NoError(t, err)
	old := time.Now().Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(store.ObjectPath(orphan), old, old))

	result, err := Run(ctx, store, refStore, Options{KeepDays: 7, DryRun: true}, time.Now())
	require.NoError(t, err)
	require.Contains(t, result.Swept, orphan)
	require.True(t, store.Exists(orphan))
}

func TestVerifyDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store, refStore := newTestRepo(t)

	tree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	commit := model.Commit{RootTree: treeID}
	commitID, err := store.PutTyped(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(commitID))

	blobID, err := store.PutBlob(ctx, []byte("original"))
	require.NoError(t, err)
	path := store.ObjectPath(blobID)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	result, err := Verify(ctx, store, refStore, VerifyOptions{CheckReachability: true})
	require.NoError(t, err)
	require.Contains(t, result.Corrupt, blobID)
	require.Contains(t, result.Unreachable, blobID) // orphaned, so also unreachable
}

func TestVerifyReportsUnreachableWithoutFlaggingHealthyObjects(t *testing.T) {
	ctx := context.Background()
	store, refStore := newTestRepo(t)

	tree := model.NewTree(nil)
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	commit := model.Commit{RootTree: treeID}
	commitID, err := store.PutTyped(ctx, commit)
	require.NoError(t, err)
	require.NoError(t, refStore.SetHead(commitID))

	orphan, err := store.PutBlob(ctx, []byte("orphan"))
	require.NoError(t, err)

	result, err := Verify(ctx, store, refStore, VerifyOptions{CheckReachability: true})
	require.NoError(t, err)
	require.Empty(t, result.Corrupt)
	require.Contains(t, result.Unreachable, orphan)
	require.NotContains(t, result.Unreachable, commitID)
}
