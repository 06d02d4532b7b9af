package staging

import (
	"context"
	"fmt"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/graph"
	"github.com/agentctx/ctx/internal/model"
)

// StepBudget carries the ingestion budgets of spec.md §6.4
// (ingestion.max_files_per_step / max_bytes_per_step). ObserveFileWrite
// checks MaxBytes against one write's content; sizes are not summed
// across a step, and MaxFiles is not checked.
type StepBudget struct {
	MaxFiles int
	MaxBytes int
}

func DefaultStepBudget() StepBudget { return StepBudget{MaxFiles: 200, MaxBytes: 20 * 1024 * 1024} }

// ObserveFileRead records that a file was read without committing its
// content (a pure provenance marker: a zero-byte FileVersion naming the
// file so adjacency/recency queries can still see it was touched). path is
// normalized and hashed into the file's stable node id (model.FileNodeID).
func (s *Session) ObserveFileRead(ctx context.Context, path string) (model.ObjectID, error) {
	normalized := model.NormalizePath(path)
	return s.observeFileVersion(ctx, model.FileVersion{FileID: model.FileNodeID(normalized), Path: normalized})
}

// ObserveFileReadWithContent additionally stores the content blob read.
func (s *Session) ObserveFileReadWithContent(ctx context.Context, path string, content []byte) (model.ObjectID, error) {
	normalized := model.NormalizePath(path)
	blobID, err := s.store.PutBlob(ctx, content)
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store read content: %w", err)
	}
	return s.observeFileVersion(ctx, model.FileVersion{FileID: model.FileNodeID(normalized), Path: normalized, BlobID: blobID, ByteCount: uint64(len(content))})
}

// ObserveFileWrite stores content and buffers a FileVersion payload entry.
// path is normalized and hashed into the file's stable node id
// (model.FileNodeID), so the same logical file keeps one identity across
// rewrites.
func (s *Session) ObserveFileWrite(ctx context.Context, path string, content []byte, budget StepBudget) (model.ObjectID, error) {
	normalized := model.NormalizePath(path)
	if len(content) > budget.MaxBytes {
		return model.ObjectID{}, ctxerr.New(ctxerr.KindBudgetExceeded, "observe_file_write", normalized, fmt.Errorf("%d bytes exceeds step limit of %d", len(content), budget.MaxBytes))
	}
	blobID, err := s.store.PutBlob(ctx, content)
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store write content: %w", err)
	}
	return s.observeFileVersion(ctx, model.FileVersion{FileID: model.FileNodeID(normalized), Path: normalized, BlobID: blobID, ByteCount: uint64(len(content))})
}

func (s *Session) observeFileVersion(ctx context.Context, fv model.FileVersion) (model.ObjectID, error) {
	id, err := s.store.PutBlob(ctx, model.EncodeFileVersion(fv))
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store file version: %w", err)
	}
	s.Observe(id)
	return id, nil
}

// ObserveCommand stores a shell command's output as a blob and buffers it.
func (s *Session) ObserveCommand(ctx context.Context, output []byte) (model.ObjectID, error) {
	id, err := s.store.PutBlob(ctx, output)
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store command output: %w", err)
	}
	s.Observe(id)
	return id, nil
}

// ObserveNote stores free-form note text as a blob and buffers it.
func (s *Session) ObserveNote(ctx context.Context, text string) (model.ObjectID, error) {
	id, err := s.store.PutBlob(ctx, []byte(text))
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store note: %w", err)
	}
	s.Observe(id)
	return id, nil
}

// ObservePlan stores plan text as a blob and buffers it.
func (s *Session) ObservePlan(ctx context.Context, text string) (model.ObjectID, error) {
	id, err := s.store.PutBlob(ctx, []byte(text))
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store plan: %w", err)
	}
	s.Observe(id)
	return id, nil
}

// ObserveRelations applies the edge ingress policy to candidate edges,
// stores the resulting batch, and buffers its id.
func (s *Session) ObserveRelations(ctx context.Context, candidates []graph.CandidateEdge, createdAt int64, policy graph.IngressPolicy) (model.ObjectID, error) {
	batch, err := graph.BuildEdgeBatch(candidates, model.ObjectID{}, createdAt, policy)
	if err != nil {
		return model.ObjectID{}, err
	}
	id, err := s.store.PutTyped(ctx, batch)
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store edge batch: %w", err)
	}
	s.Observe(id)
	return id, nil
}
