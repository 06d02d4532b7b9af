package repo

import (
	"context"
	"fmt"

	"github.com/agentctx/ctx/internal/retrieval"
)

// recentFileSeedLimit bounds how many of the active session's touched
// files feed BuildPack's seed step; unbounded would let a long session
// crowd out query-driven seeds entirely.
const recentFileSeedLimit = 20

// BuildPack runs the retrieval pipeline against canonical head (spec.md
// §4.7, §6.3 build_pack(query, options)), seeding from the active
// session's touched files when one is running so a mid-task query pulls
// in whatever the agent has been editing.
func (r *Repository) BuildPack(ctx context.Context, task, query string, seedIn retrieval.SeedInputs) (*retrieval.PromptPack, error) {
	head, err := r.Refs.Head()
	if err != nil {
		return nil, fmt.Errorf("repo: read head for build_pack: %w", err)
	}
	if r.retrievalDeps.Store == nil {
		r.retrievalDeps = retrieval.NewDeps(r.Store, r.Index)
	}
	if len(seedIn.RecentFiles) == 0 && r.session != nil {
		recent, err := r.session.RecentFileNodes(ctx, recentFileSeedLimit)
		if err != nil {
			return nil, fmt.Errorf("repo: collect recent staging touches: %w", err)
		}
		seedIn.RecentFiles = recent
	}
	cfg := retrieval.DefaultRetrievalConfig()
	cfg.TokenBudget = r.cfg.Retrieval.DefaultBudget
	cfg.MaxDepth = r.cfg.Retrieval.DefaultDepth
	if !r.cfg.Retrieval.IncludeNarrative {
		cfg.NarrativeDays = 0
	}
	return retrieval.BuildPack(ctx, r.retrievalDeps, head, task, query, cfg, seedIn)
}
