// Package retrieval implements the pack builder pipeline (spec.md §4.7):
// seed resolution, bounded BFS expansion over the SCC DAG, scoring, and
// greedy token-budget selection into a deterministic PromptPack.
package retrieval

import "github.com/agentctx/ctx/internal/model"

// Label order fixes the tie-break used by expansion (spec.md §4.7 step 2:
// "(depth, label order, target id lexicographic)"). The zero value of
// RetrievalConfig.ExpandLabels falls back to this.
var DefaultExpandLabels = []model.Label{
	model.LabelImports,
	model.LabelReferences,
	model.LabelDependsOn,
	model.LabelCalls,
	model.LabelDefines,
}

// RetrievalConfig parameterizes build_pack (spec.md §4.7).
type RetrievalConfig struct {
	TokenBudget       int
	ReservedForResponse int
	MaxDepth          int
	ExpandLabels      []model.Label
	MaxExpandedNodes  int
	NarrativeDays     int
	MinEdgeConfidence model.Confidence
}

// DefaultRetrievalConfig matches spec.md §4.7's stated defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TokenBudget:       8000,
		MaxDepth:          2,
		ExpandLabels:      DefaultExpandLabels,
		MaxExpandedNodes:  50,
		NarrativeDays:     7,
		MinEdgeConfidence: model.ConfidenceMedium,
	}
}

// ChunkKind is the closed vocabulary of retrieved[].chunk_kind values
// (spec.md §6.5).
type ChunkKind string

const (
	ChunkFileContent     ChunkKind = "FileContent"
	ChunkNarrativeExcerpt ChunkKind = "NarrativeExcerpt"
	ChunkDecision        ChunkKind = "Decision"
	ChunkDiagnosticOutput ChunkKind = "DiagnosticOutput"
	ChunkSymbolDefinition ChunkKind = "SymbolDefinition"
)

// RetrievedChunk is one entry of PromptPack.retrieved[] (spec.md §6.5).
type RetrievedChunk struct {
	Title          string    `json:"title"`
	ObjectID       string    `json:"object_id"`
	Snippet        string    `json:"snippet"`
	RelevanceScore float64   `json:"relevance_score"`
	ChunkKind      ChunkKind `json:"chunk_kind"`
}

// GraphContext reports what expansion visited, for callers that want to
// render the subgraph alongside the pack.
type GraphContext struct {
	ExpandedNodes []string `json:"expanded_nodes"`
}

// NarrativeEntry is one item of PromptPack.recent_narrative.
type NarrativeEntry struct {
	Path      string `json:"path"`
	Stream    string `json:"stream"`
	Role      string `json:"role"`
	Timestamp int64  `json:"timestamp"`
	Snippet   string `json:"snippet"`
}

// TokenBudgetReport is PromptPack.token_budget (spec.md §4.7 step 5).
type TokenBudgetReport struct {
	Budget int `json:"budget"`
	Used   int `json:"used"`
}

// PromptPack is the bounded, JSON-serializable retrieval result (spec.md
// §6.5). Top-level key order/names are fixed by the spec.
type PromptPack struct {
	Task            string            `json:"task"`
	HeadCommit      string            `json:"head_commit"`
	Retrieved       []RetrievedChunk  `json:"retrieved"`
	GraphContext    GraphContext      `json:"graph_context"`
	RecentNarrative []NarrativeEntry  `json:"recent_narrative"`
	TokenBudget     TokenBudgetReport `json:"token_budget"`
}
