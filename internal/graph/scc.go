package graph

import (
	"sort"

	"github.com/agentctx/ctx/internal/model"
)

// ComputeSCC runs Tarjan's algorithm over the adjacency graph, ignoring
// edge labels (spec.md §4.4 "SCC view"), and returns the derived quotient
// graph. Node and component ordering is made deterministic by sorting
// nodes by their string form before the traversal: Tarjan's component
// *contents* are order-independent, but the order components are
// discovered in (and thus their index) is not, so a fixed visitation
// order is required for the canonical/byte-identical guarantee build_pack
// depends on transitively.
func ComputeSCC(nodes []model.NodeID, adj *Adjacency) *model.SccView {
	sorted := append([]model.NodeID(nil), nodes...)
	sortNodes(sorted)

	succ := func(n model.NodeID) []model.NodeID {
		var out []model.NodeID
		seen := map[model.NodeID]bool{}
		for k, targets := range adj.Forward {
			if k.Dir == Forward && k.Node == n {
				for _, t := range targets {
					if !seen[t] {
						seen[t] = true
						out = append(out, t)
					}
				}
			}
		}
		sortNodes(out)
		return out
	}

	t := &tarjan{
		index:   map[model.NodeID]int{},
		lowlink: map[model.NodeID]int{},
		onStack: map[model.NodeID]bool{},
		succ:    succ,
	}
	for _, n := range sorted {
		if _, visited := t.index[n]; !visited {
			t.strongconnect(n)
		}
	}

	nodeScc := map[model.NodeID]uint32{}
	for i, comp := range t.sccs {
		for _, n := range comp {
			nodeScc[n] = uint32(i)
		}
	}

	edgeSeen := map[model.DagEdge]bool{}
	var dagEdges []model.DagEdge
	for k, targets := range adj.Forward {
		if k.Dir != Forward {
			continue
		}
		from, ok := nodeScc[k.Node]
		if !ok {
			continue
		}
		for _, to := range targets {
			toScc, ok := nodeScc[to]
			if !ok || toScc == from {
				continue
			}
			de := model.DagEdge{FromScc: from, ToScc: toScc, Label: k.Label}
			if !edgeSeen[de] {
				edgeSeen[de] = true
				dagEdges = append(dagEdges, de)
			}
		}
	}
	sort.Slice(dagEdges, func(i, j int) bool {
		a, b := dagEdges[i], dagEdges[j]
		if a.FromScc != b.FromScc {
			return a.FromScc < b.FromScc
		}
		if a.ToScc != b.ToScc {
			return a.ToScc < b.ToScc
		}
		return a.Label < b.Label
	})

	return &model.SccView{NodeScc: nodeScc, Sccs: t.sccs, DagEdges: dagEdges}
}

type tarjan struct {
	index    map[model.NodeID]int
	lowlink  map[model.NodeID]int
	onStack  map[model.NodeID]bool
	stack    []model.NodeID
	counter  int
	sccs     [][]model.NodeID
	succ     func(model.NodeID) []model.NodeID
}

func (t *tarjan) strongconnect(v model.NodeID) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.succ(v) {
		if _, visited := t.index[w]; !visited {
			t.strongconnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var comp []model.NodeID
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		sortNodes(comp)
		t.sccs = append(t.sccs, comp)
	}
}
