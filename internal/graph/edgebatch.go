package graph

import (
	"fmt"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
)

// IngressPolicy is the edge creation policy the core enforces on every
// batch of candidate edges an analyzer proposes (spec.md §4.4, point 2-3).
type IngressPolicy struct {
	// MinConfidence below which an edge is dropped unless ReferencedByNote
	// is true for that edge.
	MinConfidence model.Confidence
	// MaxEdgesPerStep is the per-step cap; exceeding it fails the whole
	// step rather than silently truncating.
	MaxEdgesPerStep int
}

// DefaultIngressPolicy mirrors retrieval's default min_edge_confidence
// (Medium) with a generous per-step cap.
func DefaultIngressPolicy() IngressPolicy {
	return IngressPolicy{MinConfidence: model.ConfidenceMedium, MaxEdgesPerStep: 2000}
}

// CandidateEdge is a proposed edge plus the one fact the core's filter
// needs beyond what model.Edge itself stores: whether it is referenced
// from a decision/note recorded in the same step, which exempts it from
// the confidence floor.
type CandidateEdge struct {
	Edge              model.Edge
	ReferencedByNote bool
}

// BuildEdgeBatch applies the ingress policy to candidates and returns the
// immutable, sorted, deduplicated batch the commit will reference. Commit
// is the commit_id to stamp into each edge's evidence as its back-reference
// (informational only; authoritative provenance lives in the
// EdgeBatchOfCommit index table per the design note in SPEC_FULL.md §9).
func BuildEdgeBatch(candidates []CandidateEdge, commit model.ObjectID, createdAt int64, policy IngressPolicy) (*model.EdgeBatch, error) {
	if len(candidates) > policy.MaxEdgesPerStep {
		return nil, ctxerr.New(ctxerr.KindBudgetExceeded, "build_edge_batch", "", fmt.Errorf("%d edges exceeds step cap of %d", len(candidates), policy.MaxEdgesPerStep))
	}

	kept := make([]model.Edge, 0, len(candidates))
	for _, c := range candidates {
		e := c.Edge
		e.Evidence.CommitID = commit
		if e.Evidence.Confidence < policy.MinConfidence && !c.ReferencedByNote {
			continue
		}
		kept = append(kept, e)
	}
	batch := model.NewEdgeBatch(kept, createdAt)
	return &batch, nil
}
