package gc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/refs"
	"github.com/agentctx/ctx/internal/telemetry"
)

// Options configures one GC run (spec.md §6.3 gc(options), §4.9).
type Options struct {
	// KeepDays is the grace period: an unreachable object is only swept
	// once its on-disk modification time is older than this many days.
	// Mirrors the teacher's own deletions.jsonl retention-day knob.
	KeepDays int
	// DryRun reports what would be swept without deleting anything.
	DryRun bool
}

// DefaultOptions matches spec.md §4.9's stated default grace period.
func DefaultOptions() Options { return Options{KeepDays: 7} }

// Result reports what one GC run found and did.
type Result struct {
	Reachable int
	Swept     []model.ObjectID
	Kept      []model.ObjectID // unreachable but inside the grace period
}

// Run performs one mark-and-sweep pass: mark every object reachable from
// canonical head and the staging pointer (if any), then delete every
// unmarked object whose modification time is older than keep_days.
// Narrative blobs reachable from any commit are never swept, since they
// are marked by the walk like any other reachable blob (spec.md §4.9).
func Run(ctx context.Context, store *objstore.Store, refStore *refs.Store, opts Options, now time.Time) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.gc.run")
	defer span.End()

	reachable, err := mark(ctx, store, refStore)
	if err != nil {
		return Result{}, fmt.Errorf("gc: mark phase: %w", err)
	}

	all, err := store.IterIDs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("gc: enumerate objects: %w", err)
	}

	cutoff := now.Add(-time.Duration(opts.KeepDays) * 24 * time.Hour)
	result := Result{Reachable: len(reachable)}
	for _, id := range all {
		if reachable[id] {
			continue
		}
		info, err := os.Stat(store.ObjectPath(id))
		if err != nil {
			return Result{}, fmt.Errorf("gc: stat object %s: %w", id, err)
		}
		if info.ModTime().After(cutoff) {
			result.Kept = append(result.Kept, id)
			continue
		}
		if !opts.DryRun {
			if err := store.Delete(id); err != nil {
				return Result{}, fmt.Errorf("gc: delete object %s: %w", id, err)
			}
		}
		result.Swept = append(result.Swept, id)
	}
	return result, nil
}
