package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
)

func node(b byte) model.NodeID {
	var id model.ObjectID
	id[0] = b
	return model.NodeID{Kind: model.NodeFile, ID: id}
}

func TestBuildEdgeBatchDropsLowConfidenceWithoutNoteRef(t *testing.T) {
	a, b := node(1), node(2)
	candidates := []CandidateEdge{
		{Edge: model.Edge{From: a, To: b, Label: model.LabelImports, Evidence: model.Evidence{Tool: "t", Confidence: model.ConfidenceLow}}},
		{Edge: model.Edge{From: a, To: b, Label: model.LabelCalls, Evidence: model.Evidence{Tool: "t", Confidence: model.ConfidenceLow}}, ReferencedByNote: true},
	}
	batch, err := BuildEdgeBatch(candidates, model.ObjectID{9}, 1, DefaultIngressPolicy())
	require.NoError(t, err)
	require.Len(t, batch.Edges, 1)
	require.Equal(t, model.LabelCalls, batch.Edges[0].Label)
}

func TestBuildEdgeBatchEnforcesStepCap(t *testing.T) {
	policy := IngressPolicy{MinConfidence: model.ConfidenceLow, MaxEdgesPerStep: 1}
	candidates := []CandidateEdge{
		{Edge: model.Edge{From: node(1), To: node(2), Label: model.LabelImports, Evidence: model.Evidence{Confidence: model.ConfidenceHigh}}},
		{Edge: model.Edge{From: node(2), To: node(1), Label: model.LabelImports, Evidence: model.Evidence{Confidence: model.ConfidenceHigh}}},
	}
	_, err := BuildEdgeBatch(candidates, model.ObjectID{}, 1, policy)
	require.True(t, ctxerr.Is(err, ctxerr.KindBudgetExceeded))
}

func TestComputeSCCFindsCycle(t *testing.T) {
	a, b, c := node(1), node(2), node(3)
	batch := model.NewEdgeBatch([]model.Edge{
		{From: a, To: b, Label: model.LabelCalls},
		{From: b, To: a, Label: model.LabelCalls},
		{From: b, To: c, Label: model.LabelImports},
	}, 1)
	adj := BuildAdjacency([]*model.EdgeBatch{&batch})
	nodes := Nodes([]*model.EdgeBatch{&batch})
	view := ComputeSCC(nodes, adj)

	require.Len(t, view.Sccs, 2) // {a,b} cyclic, {c} alone
	require.Equal(t, view.NodeScc[a], view.NodeScc[b])
	require.NotEqual(t, view.NodeScc[a], view.NodeScc[c])
	require.Len(t, view.DagEdges, 1)
	require.Equal(t, model.LabelImports, view.DagEdges[0].Label)
}

func TestBuildAdjacencyUnionsAcrossBatches(t *testing.T) {
	a, b := node(1), node(2)
	b1 := model.NewEdgeBatch([]model.Edge{{From: a, To: b, Label: model.LabelImports}}, 1)
	b2 := model.NewEdgeBatch([]model.Edge{{From: a, To: b, Label: model.LabelImports}}, 2)
	adj := BuildAdjacency([]*model.EdgeBatch{&b1, &b2})
	key := AdjacencyKey{Dir: Forward, Node: a, Label: model.LabelImports}
	require.Len(t, adj.Forward[key], 1) // union, not a duplicate per batch
}
