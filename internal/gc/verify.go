package gc

import (
	"context"
	"fmt"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/refs"
	"github.com/agentctx/ctx/internal/telemetry"
)

// VerifyOptions configures one integrity sweep (spec.md §6.3 verify(options)).
type VerifyOptions struct {
	// CheckReachability additionally reports objects that exist on disk
	// but are not reachable from any ref, without deleting them (that is
	// gc's job, under a grace period).
	CheckReachability bool
}

// VerifyResult reports what one verify pass found.
type VerifyResult struct {
	Checked      int
	Corrupt      []model.ObjectID
	Unreachable  []model.ObjectID // only populated when CheckReachability is set
}

// Verify enumerates every object in the store and re-derives its content
// id from its stored envelope (objstore.Store.get already verifies the
// hash on every read), reporting any mismatch rather than failing fast,
// so one corrupt object doesn't hide the report of every other one
// (spec.md §4.9 / §7: the object store itself refuses to tolerate a
// mismatch on a single read, but a maintenance sweep must still finish
// and report everything it found).
func Verify(ctx context.Context, store *objstore.Store, refStore *refs.Store, opts VerifyOptions) (VerifyResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.gc.verify")
	defer span.End()

	ids, err := store.IterIDs(ctx)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("gc: enumerate objects: %w", err)
	}

	result := VerifyResult{Checked: len(ids)}
	var reachable map[model.ObjectID]bool
	if opts.CheckReachability {
		reachable, err = mark(ctx, store, refStore)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("gc: mark phase: %w", err)
		}
	}

	for _, id := range ids {
		if _, _, err := store.GetRaw(ctx, id); err != nil {
			if !ctxerr.Is(err, ctxerr.KindHashMismatch) && !ctxerr.Is(err, ctxerr.KindInvalidEnvelope) {
				return VerifyResult{}, fmt.Errorf("gc: read object %s: %w", id, err)
			}
			result.Corrupt = append(result.Corrupt, id)
		}
		if opts.CheckReachability && !reachable[id] {
			result.Unreachable = append(result.Unreachable, id)
		}
	}
	return result, nil
}
