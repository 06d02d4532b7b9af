package graph

import "github.com/agentctx/ctx/internal/model"

// Direction selects which adjacency map an index.Adjacency lookup walks.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

// AdjacencyKey is (direction, node, label) — the Adjacency table's key
// shape from spec.md §4.6.
type AdjacencyKey struct {
	Dir   Direction
	Node  model.NodeID
	Label model.Label
}

// Adjacency is the effective edge set at a commit: a forward map
// (from, label) -> {to...} and its mirror reverse map, built by unioning
// every edge batch reachable from the commit (spec.md §4.4 "edges are a
// set", not last-writer-wins).
type Adjacency struct {
	Forward  map[AdjacencyKey][]model.NodeID
	Backward map[AdjacencyKey][]model.NodeID
}

// BuildAdjacency unions the edges of every batch into forward/reverse
// maps. Input batches are assumed already deduplicated within themselves
// (model.NewEdgeBatch guarantees this); duplicates across batches are
// still possible and are deduplicated here.
func BuildAdjacency(batches []*model.EdgeBatch) *Adjacency {
	adj := &Adjacency{Forward: map[AdjacencyKey][]model.NodeID{}, Backward: map[AdjacencyKey][]model.NodeID{}}
	fwdSeen := map[AdjacencyKey]map[model.NodeID]bool{}
	bwdSeen := map[AdjacencyKey]map[model.NodeID]bool{}

	for _, b := range batches {
		for _, e := range b.Edges {
			fk := AdjacencyKey{Dir: Forward, Node: e.From, Label: e.Label}
			if fwdSeen[fk] == nil {
				fwdSeen[fk] = map[model.NodeID]bool{}
			}
			if !fwdSeen[fk][e.To] {
				fwdSeen[fk][e.To] = true
				adj.Forward[fk] = append(adj.Forward[fk], e.To)
			}

			bk := AdjacencyKey{Dir: Backward, Node: e.To, Label: e.Label}
			if bwdSeen[bk] == nil {
				bwdSeen[bk] = map[model.NodeID]bool{}
			}
			if !bwdSeen[bk][e.From] {
				bwdSeen[bk][e.From] = true
				adj.Backward[bk] = append(adj.Backward[bk], e.From)
			}
		}
	}
	return adj
}

// Nodes returns the distinct set of nodes appearing in any edge, sorted by
// string form for deterministic iteration.
func Nodes(batches []*model.EdgeBatch) []model.NodeID {
	seen := map[model.NodeID]bool{}
	var out []model.NodeID
	add := func(n model.NodeID) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, b := range batches {
		for _, e := range b.Edges {
			add(e.From)
			add(e.To)
		}
	}
	sortNodes(out)
	return out
}

func sortNodes(nodes []model.NodeID) {
	for i := 1; i < len(nodes); i++ {
		j := i
		for j > 0 && nodes[j-1].String() > nodes[j].String() {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
			j--
		}
	}
}
