package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/telemetry"
)

// Deps bundles the store and index a single BuildPack call reads.
// Refs/Head is passed separately so callers that already resolved it
// (e.g. inside a larger façade operation) avoid a second read. SccCache
// is optional: a nil cache just means every call decodes its commit's
// SccView fresh. NewDeps always attaches a cache.
type Deps struct {
	Store    *objstore.Store
	Index    *index.Index
	SccCache *sccCache
}

// NewDeps builds a Deps bundle backed by its own SccView cache, so a
// caller holding one Deps across many BuildPack calls against the same
// repository amortizes the decode cost across all of them.
func NewDeps(store *objstore.Store, ix *index.Index) Deps {
	return Deps{Store: store, Index: ix, SccCache: newSccCache()}
}

// candidate is one node carried from expansion through scoring to the
// final chunk, before budget selection decides whether it survives.
type candidate struct {
	node      model.NodeID
	blobID    model.ObjectID
	depth     int
	content   []byte
	title     string
	chunkKind ChunkKind
	score     float64
}

// BuildPack runs the full pipeline of spec.md §4.7 against the canonical
// state at head: seed, expand, retrieve, narrative window, budget. It is
// deterministic for fixed (head, cfg, query, seedInputs): no field it
// reads varies across calls with the same inputs, and all intermediate
// orderings are total, so two runs over the same store produce
// byte-identical JSON once marshaled (spec.md §4.7 "Determinism
// property").
func BuildPack(ctx context.Context, deps Deps, head model.ObjectID, task, query string, cfg RetrievalConfig, seedIn SeedInputs) (*PromptPack, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.retrieval.build_pack")
	defer span.End()

	if len(cfg.ExpandLabels) == 0 {
		cfg.ExpandLabels = DefaultExpandLabels
	}

	pack := &PromptPack{
		Task:       task,
		HeadCommit: head.String(),
		Retrieved:  []RetrievedChunk{},
		GraphContext: GraphContext{
			ExpandedNodes: []string{},
		},
		RecentNarrative: []NarrativeEntry{},
	}
	if head.IsZero() {
		pack.TokenBudget = TokenBudgetReport{Budget: cfg.TokenBudget}
		return pack, nil
	}

	tokens := Tokenize(query)

	seeds, err := Seed(deps.Index, query, seedIn)
	if err != nil {
		return nil, err
	}

	ptrs, ok, err := deps.Index.GetSnapshotPointers(head)
	if err != nil {
		return nil, fmt.Errorf("retrieval: load snapshot pointers for %s: %w", head, err)
	}
	var view *model.SccView
	if ok && !ptrs.SccViewID.IsZero() {
		cache := deps.SccCache
		if cache == nil {
			cache = newSccCache()
		}
		sv, err := cache.get(ctx, deps.Store, ptrs.SccViewID)
		if err != nil {
			return nil, err
		}
		view = sv
	}

	expanded := Expand(view, seeds, cfg.ExpandLabels, cfg.MaxDepth, cfg.MaxExpandedNodes)

	candidates := make([]candidate, 0, len(expanded))
	expandedNodeStrings := make([]string, 0, len(expanded))
	for _, e := range expanded {
		expandedNodeStrings = append(expandedNodeStrings, e.Node.String())

		content, blobID, ok, err := resolveContent(ctx, deps, head, e.Node)
		if err != nil {
			return nil, fmt.Errorf("retrieval: load content for %s: %w", e.Node, err)
		}
		if !ok {
			continue // node id known to the graph but its content object is gone
		}

		c := candidate{
			node:      e.Node,
			blobID:    blobID,
			depth:     e.Depth,
			content:   content,
			title:     titleFor(e.Node),
			chunkKind: chunkKindFor(e.Node.Kind),
		}
		c.score = score(e.Depth, tokens, content, cfg)
		candidates = append(candidates, c)
	}
	pack.GraphContext.ExpandedNodes = expandedNodeStrings

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].node.String() < candidates[j].node.String()
	})

	reserved := cfg.ReservedForResponse
	budget := cfg.TokenBudget - reserved
	if budget < 0 {
		budget = 0
	}
	used := 0
	for _, c := range candidates {
		cost := estimateTokens(string(c.content))
		if used+cost > budget {
			continue
		}
		used += cost
		pack.Retrieved = append(pack.Retrieved, RetrievedChunk{
			Title:          c.title,
			ObjectID:       c.blobID.String(),
			Snippet:        string(c.content),
			RelevanceScore: c.score,
			ChunkKind:      c.chunkKind,
		})
	}
	pack.TokenBudget = TokenBudgetReport{Budget: cfg.TokenBudget, Used: used}

	narrative, err := narrativeWindow(ctx, deps.Store, head, cfg.NarrativeDays)
	if err != nil {
		return nil, err
	}
	pack.RecentNarrative = narrative

	return pack, nil
}

// resolveContent reaches a node's current content (spec.md §4.7 step 3).
// File nodes carry a stable, path-derived identity (model.FileNodeID), not
// a blob id, so their content is reached through head's snapshot pointers;
// every other node kind's id is already the content blob's object id.
func resolveContent(ctx context.Context, deps Deps, head model.ObjectID, node model.NodeID) ([]byte, model.ObjectID, bool, error) {
	blobID := node.ID
	if node.Kind == model.NodeFile {
		resolved, ok, err := deps.Index.ResolveFileBlob(head, node)
		if err != nil {
			return nil, model.ObjectID{}, false, err
		}
		if !ok {
			return nil, model.ObjectID{}, false, nil
		}
		blobID = resolved
	}
	content, err := deps.Store.GetBlob(ctx, blobID)
	if err != nil {
		if objstore.IsNotFound(err) {
			return nil, model.ObjectID{}, false, nil
		}
		return nil, model.ObjectID{}, false, err
	}
	return content, blobID, true, nil
}

func titleFor(n model.NodeID) string {
	return fmt.Sprintf("%s %s", n.Kind, n.ID.String()[:12])
}

func chunkKindFor(k model.NodeKind) ChunkKind {
	switch k {
	case model.NodeFile:
		return ChunkFileContent
	case model.NodeNote:
		return ChunkNarrativeExcerpt
	case model.NodeDecision:
		return ChunkDecision
	case model.NodeDiagnostic:
		return ChunkDiagnosticOutput
	default:
		return ChunkSymbolDefinition
	}
}

// narrativeWindow walks head's ancestry far enough to collect every
// NarrativeRef whose containing commit falls within narrativeDays of
// head's timestamp (spec.md §4.7 step 4). It stops walking once an
// ancestor's timestamp falls outside the window, since commit timestamps
// are expected non-decreasing along parent links in normal operation;
// a clock regression only shrinks the window it contributes, never
// corrupts later entries.
func narrativeWindow(ctx context.Context, store *objstore.Store, head model.ObjectID, narrativeDays int) ([]NarrativeEntry, error) {
	const secondsPerDay = 86400
	windowSecs := int64(narrativeDays) * secondsPerDay

	headCommit, err := loadCommit(ctx, store, head)
	if err != nil {
		return nil, err
	}
	cutoff := headCommit.Timestamp - windowSecs

	var entries []NarrativeEntry
	cur := head
	for {
		c, err := loadCommit(ctx, store, cur)
		if err != nil {
			return nil, err
		}
		if c.Timestamp < cutoff {
			break
		}
		for _, nr := range c.NarrativeRefs {
			blob, err := store.GetBlob(ctx, nr.BlobID)
			if err != nil {
				return nil, fmt.Errorf("retrieval: load narrative blob %s: %w", nr.BlobID, err)
			}
			entries = append(entries, NarrativeEntry{
				Path:      nr.Path,
				Stream:    nr.Stream,
				Role:      nr.Role.String(),
				Timestamp: c.Timestamp,
				Snippet:   string(blob),
			})
		}
		if len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		if entries[i].Path != entries[j].Path {
			return entries[i].Path < entries[j].Path
		}
		return entries[i].Stream < entries[j].Stream
	})
	return entries, nil
}

func loadCommit(ctx context.Context, store *objstore.Store, id model.ObjectID) (*model.Commit, error) {
	v, err := store.GetTyped(ctx, id)
	if err != nil {
		return nil, ctxerr.New(ctxerr.KindObjectNotFound, "build_pack", id.String(), err)
	}
	c, ok := v.(*model.Commit)
	if !ok {
		return nil, fmt.Errorf("retrieval: object %s is not a Commit", id)
	}
	return c, nil
}
