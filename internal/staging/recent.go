package staging

import (
	"context"
	"fmt"

	"github.com/agentctx/ctx/internal/model"
)

// RecentFileNodes returns the File node ids touched by StepFileWrite/
// StepFileRead entries in the active staging chain, most-recently-touched
// first, capped at limit. It feeds retrieval's seed step (spec.md §4.7
// step 1 "recent staging file touches") without the caller needing to
// know anything about work-commit payload shapes. Returns an empty slice
// when no session is active.
func (s *Session) RecentFileNodes(ctx context.Context, limit int) ([]model.NodeID, error) {
	stageHead, present, err := s.refs.Stage()
	if err != nil {
		return nil, fmt.Errorf("staging: read stage: %w", err)
	}
	if !present {
		return nil, nil
	}

	entries, _, err := s.walkChain(ctx, stageHead)
	if err != nil {
		return nil, err
	}

	seen := make(map[model.NodeID]bool)
	var out []model.NodeID
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := entries[i]
		if e.wc.StepKind != model.StepFileWrite && e.wc.StepKind != model.StepFileRead {
			continue
		}
		for _, pid := range e.wc.Payload {
			fv, err := s.loadFileVersion(ctx, pid)
			if err != nil {
				return nil, err
			}
			if seen[fv.FileID] {
				continue
			}
			seen[fv.FileID] = true
			out = append(out, fv.FileID)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}
