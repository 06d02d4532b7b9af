package repo

import (
	"context"

	"github.com/agentctx/ctx/internal/graph"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/staging"
)

// ObserveFileRead records that a file was read without committing
// content (spec.md §4.5 observe_file_read).
func (r *Repository) ObserveFileRead(ctx context.Context, path string) (model.ObjectID, error) {
	return r.session.ObserveFileRead(ctx, path)
}

// ObserveFileReadWithContent additionally stores the content blob read
// (spec.md §4.5 observe_file_read_with_content).
func (r *Repository) ObserveFileReadWithContent(ctx context.Context, path string, content []byte) (model.ObjectID, error) {
	return r.session.ObserveFileReadWithContent(ctx, path, content)
}

// ObserveFileWrite stores content and buffers a FileVersion payload entry
// (spec.md §4.5 observe_file_write), bounded by the configured per-step
// ingestion budget.
func (r *Repository) ObserveFileWrite(ctx context.Context, path string, content []byte) (model.ObjectID, error) {
	budget := staging.StepBudget{MaxFiles: r.cfg.Ingestion.MaxFilesPerStep, MaxBytes: r.cfg.Ingestion.MaxBytesPerStep}
	return r.session.ObserveFileWrite(ctx, path, content, budget)
}

// ObserveCommand stores a shell command's output as a blob and buffers
// it (spec.md §4.5 observe_command).
func (r *Repository) ObserveCommand(ctx context.Context, output []byte) (model.ObjectID, error) {
	return r.session.ObserveCommand(ctx, output)
}

// ObserveNote stores free-form note text as a blob and buffers it
// (spec.md §4.5 observe_note).
func (r *Repository) ObserveNote(ctx context.Context, text string) (model.ObjectID, error) {
	return r.session.ObserveNote(ctx, text)
}

// ObservePlan stores plan text as a blob and buffers it (spec.md §4.5
// observe_plan).
func (r *Repository) ObservePlan(ctx context.Context, text string) (model.ObjectID, error) {
	return r.session.ObservePlan(ctx, text)
}

// ObserveRelations applies the edge ingress policy to candidate edges and
// buffers the resulting batch (spec.md §4.5 observe_relations), capped by
// the configured per-step edge budget.
func (r *Repository) ObserveRelations(ctx context.Context, candidates []graph.CandidateEdge, createdAt int64) (model.ObjectID, error) {
	policy := graph.IngressPolicy{MaxEdgesPerStep: r.cfg.Ingestion.MaxEdgesPerStep, MinConfidence: model.ConfidenceMedium}
	return r.session.ObserveRelations(ctx, candidates, createdAt, policy)
}
