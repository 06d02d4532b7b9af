package retrieval

import (
	"sort"

	"github.com/agentctx/ctx/internal/model"
)

// ExpandedNode is one node surfaced by expansion, carrying the metadata
// its deterministic ordering and seed-distance scoring need.
type ExpandedNode struct {
	Node      model.NodeID
	Depth     int
	LabelRank int // index into the configured expand label order; seeds use 0
}

func labelRankOf(labels []model.Label, l model.Label) int {
	for i, x := range labels {
		if x == l {
			return i
		}
	}
	return len(labels)
}

// Expand performs the bounded BFS over view's SCC DAG described by
// spec.md §4.7 step 2: starting from the SCCs containing seeds, walk
// dag_edges whose label is in labels, capped by maxDepth and
// maxExpandedNodes, breaking ties by (depth, label order, lexicographic
// node id). The member nodes of every visited SCC are returned, not just
// the SCC boundary nodes, since retrieval needs individual content
// sources; a seed that belongs to no SCC of view is returned at depth 0.
func Expand(view *model.SccView, seeds []model.NodeID, labels []model.Label, maxDepth, maxExpandedNodes int) []ExpandedNode {
	if view == nil {
		return seedOnlyNodes(seeds)
	}

	type sccVisit struct {
		depth     int
		labelRank int
	}
	visited := make(map[uint32]sccVisit)
	var order []uint32

	frontier := make(map[uint32]bool)
	var isolated []model.NodeID // seeds with no edges, hence no scc in view
	for _, s := range seeds {
		scc, ok := view.NodeScc[s]
		if !ok {
			isolated = append(isolated, s)
			continue
		}
		if _, seen := visited[scc]; !seen {
			visited[scc] = sccVisit{depth: 0, labelRank: 0}
			order = append(order, scc)
		}
		frontier[scc] = true
	}

	// adjacency grouped by source scc, label-sorted for deterministic walk
	type dagTarget struct {
		to        uint32
		labelRank int
	}
	bySrc := make(map[uint32][]dagTarget)
	for _, e := range view.DagEdges {
		rank := labelRankOf(labels, e.Label)
		if rank == len(labels) {
			continue // label not in the configured expand set
		}
		bySrc[e.FromScc] = append(bySrc[e.FromScc], dagTarget{to: e.ToScc, labelRank: rank})
	}
	for src := range bySrc {
		ts := bySrc[src]
		sort.Slice(ts, func(i, j int) bool {
			if ts[i].labelRank != ts[j].labelRank {
				return ts[i].labelRank < ts[j].labelRank
			}
			return ts[i].to < ts[j].to
		})
		bySrc[src] = ts
	}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var frontierList []uint32
		for s := range frontier {
			frontierList = append(frontierList, s)
		}
		sort.Slice(frontierList, func(i, j int) bool { return frontierList[i] < frontierList[j] })

		next := make(map[uint32]bool)
		for _, src := range frontierList {
			for _, t := range bySrc[src] {
				if _, seen := visited[t.to]; seen {
					continue
				}
				visited[t.to] = sccVisit{depth: depth, labelRank: t.labelRank}
				order = append(order, t.to)
				next[t.to] = true
			}
		}
		frontier = next
	}

	var nodes []ExpandedNode
	for _, scc := range order {
		v := visited[scc]
		for _, n := range view.Sccs[scc] {
			nodes = append(nodes, ExpandedNode{Node: n, Depth: v.depth, LabelRank: v.labelRank})
		}
	}
	for _, s := range isolated {
		nodes = append(nodes, ExpandedNode{Node: s, Depth: 0})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		if nodes[i].LabelRank != nodes[j].LabelRank {
			return nodes[i].LabelRank < nodes[j].LabelRank
		}
		return nodes[i].Node.String() < nodes[j].Node.String()
	})

	if maxExpandedNodes > 0 && len(nodes) > maxExpandedNodes {
		nodes = nodes[:maxExpandedNodes]
	}
	return nodes
}

func seedOnlyNodes(seeds []model.NodeID) []ExpandedNode {
	nodes := make([]ExpandedNode, 0, len(seeds))
	for _, s := range seeds {
		nodes = append(nodes, ExpandedNode{Node: s, Depth: 0})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Node.String() < nodes[j].Node.String() })
	return nodes
}
