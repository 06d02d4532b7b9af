package repo

import (
	"context"

	"github.com/agentctx/ctx/internal/graph"
	"github.com/agentctx/ctx/internal/model"
)

// isAncestor reports whether ancestor is of's ancestor (or of itself),
// used by staging.Session.Recover to decide whether canonical head is an
// ancestor of an in-progress session's base.
func (r *Repository) isAncestor(ctx context.Context, ancestor, of model.ObjectID) (bool, error) {
	if ancestor == of {
		return true, nil
	}
	order, _, err := graph.WalkAncestors(ctx, r.Store, []model.ObjectID{of})
	if err != nil {
		return false, err
	}
	for _, id := range order {
		if id == ancestor {
			return true, nil
		}
	}
	return false, nil
}
