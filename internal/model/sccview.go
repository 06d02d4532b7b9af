package model

import (
	"fmt"

	"github.com/agentctx/ctx/internal/codec"
)

// SccView is the derived strongly-connected-component quotient graph
// (spec.md §4.4). NodeScc maps a node to its component index; Sccs lists
// each component's members (index-ordered); DagEdges are the labeled
// edges between distinct components, deduplicated.
type SccView struct {
	NodeScc map[NodeID]uint32
	Sccs    [][]NodeID
	DagEdges []DagEdge
}

// DagEdge is one edge of the SCC quotient DAG.
type DagEdge struct {
	FromScc uint32
	ToScc   uint32
	Label   Label
}

func (s SccView) TypedKind() TypedKind { return TypedSccView }

func (s SccView) Encode() []byte {
	w := codec.NewWriter()
	// Sccs is the primary ordering; NodeScc is redundant with it but kept
	// for O(1) membership lookup, so we encode Sccs and rebuild NodeScc on
	// decode rather than encoding both (keeps the canonical law simple:
	// NodeScc's iteration order would otherwise have to be independently
	// canonicalized).
	w.PutUvarint(uint64(len(s.Sccs)))
	for _, members := range s.Sccs {
		w.PutUvarint(uint64(len(members)))
		for _, n := range members {
			n.encode(w)
		}
	}
	w.PutUvarint(uint64(len(s.DagEdges)))
	for _, e := range s.DagEdges {
		w.PutUvarint(uint64(e.FromScc))
		w.PutUvarint(uint64(e.ToScc))
		w.PutUvarint(uint64(e.Label))
	}
	return w.Bytes()
}

func DecodeSccView(b []byte) (*SccView, error) {
	r := codec.NewReader(b)
	n := r.Uvarint()
	sccs := make([][]NodeID, 0, n)
	nodeScc := make(map[NodeID]uint32)
	for i := uint64(0); i < n; i++ {
		m := r.Uvarint()
		members := make([]NodeID, 0, m)
		for j := uint64(0); j < m; j++ {
			id, err := decodeNodeID(r)
			if err != nil {
				return nil, fmt.Errorf("model: decode scc %d member %d: %w", i, j, err)
			}
			members = append(members, id)
			nodeScc[id] = uint32(i)
		}
		sccs = append(sccs, members)
	}
	en := r.Uvarint()
	edges := make([]DagEdge, 0, en)
	for i := uint64(0); i < en; i++ {
		from := uint32(r.Uvarint())
		to := uint32(r.Uvarint())
		label := Label(r.Uvarint())
		edges = append(edges, DagEdge{FromScc: from, ToScc: to, Label: label})
	}
	return &SccView{NodeScc: nodeScc, Sccs: sccs, DagEdges: edges}, nil
}
