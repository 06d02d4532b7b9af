package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
)

func TestPathNameStableKeyRoundTrip(t *testing.T) {
	ix, err := Open(t.TempDir())
	require.NoError(t, err)
	defer ix.Close()

	file := model.NodeID{Kind: model.NodeFile, ID: model.ObjectID{1}}
	require.NoError(t, ix.PutPath("src/a.go", file))
	got, ok, err := ix.GetPath("src/a.go")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, file, got)

	ids := []model.ObjectID{{2}, {3}}
	require.NoError(t, ix.PutName("file", "a.go", ids))
	gotIDs, err := ix.GetName("file", "a.go")
	require.NoError(t, err)
	require.Equal(t, ids, gotIDs)

	item := model.NodeID{Kind: model.NodeItem, ID: model.ObjectID{4}}
	require.NoError(t, ix.PutStableKey("pkg::Foo", item))
	gotItem, ok, err := ix.GetStableKey("pkg::Foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, item, gotItem)
}

func TestRebuildFullIndexesInitialCommit(t *testing.T) {
	ctx := context.Background()
	store, err := objstore.Open(t.TempDir(), objstore.DefaultOptions())
	require.NoError(t, err)

	blobID, err := store.PutBlob(ctx, []byte("hello"))
	require.NoError(t, err)
	tree := model.NewTree([]model.TreeEntry{{Name: "a.txt", Kind: model.KindBlob, ID: blobID}})
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)
	commit := model.Commit{Timestamp: 1, Message: "initial", RootTree: treeID}
	commitID, err := store.PutTyped(ctx, &commit)
	require.NoError(t, err)

	ix, err := Rebuild(ctx, store, t.TempDir(), []model.ObjectID{commitID}, Full)
	require.NoError(t, err)
	defer ix.Close()

	got, ok, err := ix.GetPath("a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.FileNodeID("a.txt"), got)

	resolved, ok, err := ix.ResolveFileBlob(commitID, got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, blobID, resolved)

	last, ok, err := ix.LastIndexedHead()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, commitID, last)
}
