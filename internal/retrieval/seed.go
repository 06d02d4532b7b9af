package retrieval

import (
	"fmt"
	"strings"

	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
)

// rawWords splits a query on whitespace, trimming surrounding punctuation
// but keeping the internal dots/slashes/underscores that real file paths
// and identifiers carry. The normalized word-tokenizer used for overlap
// scoring is deliberately not reused here: it strips '.' and '/', which
// would turn "main.go" into unmatchable fragments before a Path/Name
// lookup ever ran.
func rawWords(query string) []string {
	fields := strings.Fields(query)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.Trim(f, ",.;:!?()\"'")
		if trimmed != "" {
			words = append(words, trimmed)
		}
	}
	return words
}

// SeedInputs bundles what the caller already knows beyond the query
// string itself: the active task (if any) and the file versions touched
// in the last k work-commits of an in-progress staging chain (spec.md
// §4.7 step 1). Both are optional; the repository façade is responsible
// for walking staging to populate RecentFiles before calling BuildPack.
type SeedInputs struct {
	ActiveTask  model.NodeID
	HasActiveTask bool
	RecentFiles []model.NodeID
	Explicit    []model.NodeID // nodes named directly in the query, e.g. by path
}

// Seed resolves the initial frontier (spec.md §4.7 step 1): query words
// against the Path and Name indexes, plus the active task, plus recent
// staging file touches, plus explicitly referenced nodes. Order is
// deterministic: Explicit, then ActiveTask, then RecentFiles, then
// word matches in word order, each de-duplicated on first occurrence.
func Seed(ix *index.Index, query string, in SeedInputs) ([]model.NodeID, error) {
	seen := make(map[model.NodeID]bool)
	var out []model.NodeID
	add := func(n model.NodeID) {
		if seen[n] {
			return
		}
		seen[n] = true
		out = append(out, n)
	}

	for _, n := range in.Explicit {
		add(n)
	}
	if in.HasActiveTask {
		add(in.ActiveTask)
	}
	for _, n := range in.RecentFiles {
		add(n)
	}

	for _, word := range rawWords(query) {
		if n, ok, err := ix.GetPath(word); err != nil {
			return nil, fmt.Errorf("retrieval: seed path lookup %q: %w", word, err)
		} else if ok {
			add(n)
		}
		ids, err := ix.GetName("file", word)
		if err != nil {
			return nil, fmt.Errorf("retrieval: seed name lookup %q: %w", word, err)
		}
		for _, id := range ids {
			add(model.NodeID{Kind: model.NodeFile, ID: id})
		}
	}
	return out, nil
}
