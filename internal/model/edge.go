package model

import (
	"fmt"

	"github.com/agentctx/ctx/internal/codec"
)

// Evidence is the provenance of an Edge (spec.md §3). CommitID here is
// informational only (see SPEC_FULL.md §9 / spec.md §9, second Open
// Question): authoritative provenance is resolved at index time via the
// EdgeBatchOfCommit table, because an edge is written before the commit
// that contains it and so cannot name it authoritatively at write time.
type Evidence struct {
	CommitID   ObjectID // informational only
	HasSpan    bool
	SpanStart  uint32
	SpanEnd    uint32
	HasBlobID  bool
	BlobID     ObjectID
	Tool       string
	Confidence Confidence
}

func (e Evidence) encode(w *codec.Writer) error {
	e.CommitID.encode(w)
	w.PutBool(e.HasSpan)
	if e.HasSpan {
		w.PutUvarint(uint64(e.SpanStart))
		w.PutUvarint(uint64(e.SpanEnd))
	}
	w.PutBool(e.HasBlobID)
	if e.HasBlobID {
		e.BlobID.encode(w)
	}
	if err := w.PutString(e.Tool); err != nil {
		return err
	}
	w.PutUvarint(uint64(e.Confidence))
	return nil
}

func decodeEvidence(r *codec.Reader) (Evidence, error) {
	var e Evidence
	id, err := decodeObjectID(r)
	if err != nil {
		return e, err
	}
	e.CommitID = id
	e.HasSpan = r.Bool()
	if e.HasSpan {
		e.SpanStart = uint32(r.Uvarint())
		e.SpanEnd = uint32(r.Uvarint())
	}
	e.HasBlobID = r.Bool()
	if e.HasBlobID {
		bid, err := decodeObjectID(r)
		if err != nil {
			return e, err
		}
		e.BlobID = bid
	}
	tool, err := r.String()
	if err != nil {
		return e, err
	}
	e.Tool = tool
	e.Confidence = Confidence(r.Uvarint())
	return e, nil
}

// Edge is a directed, labeled relationship between two NodeIds.
type Edge struct {
	From     NodeID
	To       NodeID
	Label    Label
	HasWeight bool
	Weight   float64
	Evidence Evidence
}

func (e Edge) encode(w *codec.Writer) error {
	e.From.encode(w)
	e.To.encode(w)
	w.PutUvarint(uint64(e.Label))
	w.PutBool(e.HasWeight)
	if e.HasWeight {
		if err := w.PutFloat64(e.Weight); err != nil {
			return err
		}
	}
	return e.Evidence.encode(w)
}

func decodeEdge(r *codec.Reader) (Edge, error) {
	var e Edge
	from, err := decodeNodeID(r)
	if err != nil {
		return e, err
	}
	to, err := decodeNodeID(r)
	if err != nil {
		return e, err
	}
	e.From, e.To = from, to
	e.Label = Label(r.Uvarint())
	e.HasWeight = r.Bool()
	if e.HasWeight {
		w, err := r.Float64()
		if err != nil {
			return e, err
		}
		e.Weight = w
	}
	ev, err := decodeEvidence(r)
	if err != nil {
		return e, err
	}
	e.Evidence = ev
	return e, nil
}

// edgeLess imposes the deterministic edge order used for canonical encoding:
// edges form a set, not a sequence, so the encoder must pick one stable
// ordering regardless of insertion order (spec.md §4.4 "edges are a set").
func edgeLess(a, b Edge) bool {
	if a.From.Kind != b.From.Kind {
		return a.From.Kind < b.From.Kind
	}
	if a.From.ID != b.From.ID {
		return a.From.ID.String() < b.From.ID.String()
	}
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	if a.To.Kind != b.To.Kind {
		return a.To.Kind < b.To.Kind
	}
	return a.To.ID.String() < b.To.ID.String()
}

// EdgeBatch is an immutable set of edges emitted in one observation step
// (spec.md §3, §4.4).
type EdgeBatch struct {
	Edges     []Edge
	CreatedAt int64 // unix seconds
}

// NewEdgeBatch sorts edges into canonical order and dedups exact duplicates,
// since edges form a set.
func NewEdgeBatch(edges []Edge, createdAt int64) EdgeBatch {
	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sortEdges(sorted)
	deduped := sorted[:0:0]
	for i, e := range sorted {
		if i > 0 && edgeEqual(e, sorted[i-1]) {
			continue
		}
		deduped = append(deduped, e)
	}
	return EdgeBatch{Edges: deduped, CreatedAt: createdAt}
}

func edgeEqual(a, b Edge) bool {
	return a.From == b.From && a.To == b.To && a.Label == b.Label
}

func sortEdges(edges []Edge) {
	// insertion sort is fine at per-step batch sizes; avoids pulling in
	// sort.Slice's reflection-based comparator for a hot encode path.
	for i := 1; i < len(edges); i++ {
		for j := i; j > 0 && edgeLess(edges[j], edges[j-1]); j-- {
			edges[j], edges[j-1] = edges[j-1], edges[j]
		}
	}
}

func (b EdgeBatch) TypedKind() TypedKind { return TypedEdgeBatch }

func (b EdgeBatch) Encode() []byte {
	w := codec.NewWriter()
	w.PutVarint(b.CreatedAt)
	w.PutUvarint(uint64(len(b.Edges)))
	for _, e := range b.Edges {
		if err := e.encode(w); err != nil {
			// Edge fields are validated before an EdgeBatch is ever
			// constructed (graph.BuildEdgeBatch); reaching here means a
			// caller bypassed that and handed us an invalid edge.
			panic(fmt.Errorf("model: encode edge batch: %w", err))
		}
	}
	return w.Bytes()
}

func DecodeEdgeBatch(b []byte) (*EdgeBatch, error) {
	r := codec.NewReader(b)
	created := r.Varint()
	n := r.Uvarint()
	edges := make([]Edge, 0, n)
	for i := uint64(0); i < n; i++ {
		e, err := decodeEdge(r)
		if err != nil {
			return nil, fmt.Errorf("model: decode edge %d: %w", i, err)
		}
		edges = append(edges, e)
	}
	return &EdgeBatch{Edges: edges, CreatedAt: created}, nil
}
