package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
)

func TestTokenizeDropsPunctuationAndStopwords(t *testing.T) {
	got := Tokenize("What is the parse_config() function, and how is it used?")
	require.Equal(t, []string{"parse_config", "function", "used"}, got)
}

func TestOverlapRatio(t *testing.T) {
	require.InDelta(t, 1.0, overlapRatio([]string{"foo", "bar"}, []string{"foo", "bar", "baz"}), 1e-9)
	require.InDelta(t, 0.5, overlapRatio([]string{"foo", "bar"}, []string{"foo"}), 1e-9)
	require.Equal(t, 0.0, overlapRatio(nil, []string{"foo"}))
}

func node(b byte) model.NodeID {
	id := model.ObjectID{}
	id[0] = b
	return model.NodeID{Kind: model.NodeItem, ID: id}
}

func TestExpandBFSOrdersByDepthThenLabelThenID(t *testing.T) {
	a, b, c, d := node(1), node(2), node(3), node(4)
	view := &model.SccView{
		NodeScc: map[model.NodeID]uint32{a: 0, b: 1, c: 2, d: 3},
		Sccs:    [][]model.NodeID{{a}, {b}, {c}, {d}},
		DagEdges: []model.DagEdge{
			{FromScc: 0, ToScc: 1, Label: model.LabelCalls},
			{FromScc: 0, ToScc: 2, Label: model.LabelImports},
			{FromScc: 1, ToScc: 3, Label: model.LabelImports},
		},
	}
	expanded := Expand(view, []model.NodeID{a}, DefaultExpandLabels, 2, 50)
	require.Len(t, expanded, 4)
	// depth 0: a. depth 1: c (Imports ranks before Calls), then b.
	// depth 2: d (reached via b).
	require.Equal(t, a, expanded[0].Node)
	require.Equal(t, c, expanded[1].Node)
	require.Equal(t, b, expanded[2].Node)
	require.Equal(t, d, expanded[3].Node)
}

func TestExpandCapsNodeCount(t *testing.T) {
	a, b, c := node(1), node(2), node(3)
	view := &model.SccView{
		NodeScc: map[model.NodeID]uint32{a: 0, b: 1, c: 2},
		Sccs:    [][]model.NodeID{{a}, {b}, {c}},
		DagEdges: []model.DagEdge{
			{FromScc: 0, ToScc: 1, Label: model.LabelImports},
			{FromScc: 0, ToScc: 2, Label: model.LabelImports},
		},
	}
	expanded := Expand(view, []model.NodeID{a}, DefaultExpandLabels, 2, 2)
	require.Len(t, expanded, 2)
}

func setupRepo(t *testing.T) (*objstore.Store, *index.Index, model.ObjectID) {
	t.Helper()
	ctx := context.Background()
	store, err := objstore.Open(t.TempDir(), objstore.DefaultOptions())
	require.NoError(t, err)

	contentID, err := store.PutBlob(ctx, []byte("package main\n\nfunc parseConfig() {}\n"))
	require.NoError(t, err)
	tree := model.NewTree([]model.TreeEntry{{Name: "main.go", Kind: model.KindBlob, ID: contentID}})
	treeID, err := store.PutTyped(ctx, tree)
	require.NoError(t, err)

	commit := model.Commit{Timestamp: 1000, Message: "initial", RootTree: treeID}
	commitID, err := store.PutTyped(ctx, commit)
	require.NoError(t, err)

	ix, err := index.Rebuild(ctx, store, t.TempDir(), []model.ObjectID{commitID}, index.Full)
	require.NoError(t, err)
	return store, ix, commitID
}

func TestBuildPackEmptyHeadReturnsEmptyPack(t *testing.T) {
	store, err := objstore.Open(t.TempDir(), objstore.DefaultOptions())
	require.NoError(t, err)
	ix, err := index.Open(t.TempDir())
	require.NoError(t, err)

	pack, err := BuildPack(context.Background(), Deps{Store: store, Index: ix}, model.ObjectID{}, "investigate bug", "parse config", DefaultRetrievalConfig(), SeedInputs{})
	require.NoError(t, err)
	require.Empty(t, pack.Retrieved)
	require.Empty(t, pack.GraphContext.ExpandedNodes)
	require.Equal(t, 0, pack.TokenBudget.Used)
}

func TestBuildPackRetrievesSeedFileByPath(t *testing.T) {
	store, ix, commitID := setupRepo(t)
	cfg := DefaultRetrievalConfig()

	pack, err := BuildPack(context.Background(), Deps{Store: store, Index: ix}, commitID, "", "main.go", cfg, SeedInputs{})
	require.NoError(t, err)
	require.Len(t, pack.Retrieved, 1)
	require.Equal(t, ChunkFileContent, pack.Retrieved[0].ChunkKind)
	require.Contains(t, pack.Retrieved[0].Snippet, "parseConfig")
}

func TestBuildPackIsDeterministic(t *testing.T) {
	store, ix, commitID := setupRepo(t)
	cfg := DefaultRetrievalConfig()

	first, err := BuildPack(context.Background(), Deps{Store: store, Index: ix}, commitID, "t", "main.go parseConfig", cfg, SeedInputs{})
	require.NoError(t, err)
	second, err := BuildPack(context.Background(), Deps{Store: store, Index: ix}, commitID, "t", "main.go parseConfig", cfg, SeedInputs{})
	require.NoError(t, err)
	require.Equal(t, first, second)
}
