package staging

import (
	"context"
	"fmt"

	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/telemetry"
)

// Flush creates one new work-commit from the buffered artifacts and
// current state, then atomically advances the staging pointer. Flush on
// an empty buffer with no pending state or narrative change is a true
// no-op: it writes nothing and returns the existing stage id unchanged,
// so repeated empty flushes converge to the same id (spec.md §4.5, §8).
func (s *Session) Flush(ctx context.Context, stepKind model.StepKind, createdAt int64) (model.ObjectID, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.staging.flush")
	defer span.End()

	parent, present, err := s.refs.Stage()
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: read stage pointer: %w", err)
	}
	if !present {
		return model.ObjectID{}, fmt.Errorf("staging: flush called with no active session")
	}

	parentWc, err := s.loadWorkCommit(ctx, parent)
	if err != nil {
		return model.ObjectID{}, err
	}

	if len(s.buffer) == 0 && len(s.narrativeRefs) == 0 && s.state == parentWc.State {
		return parent, nil
	}

	if stepKind == "" {
		if len(s.buffer) == 0 {
			stepKind = model.StepEmptyFlush
		} else {
			stepKind = model.StepNote
		}
	}

	wc := model.WorkCommit{
		Parent:        parent,
		Base:          parentWc.Base,
		SessionID:     s.id,
		CreatedAt:     createdAt,
		StepKind:      stepKind,
		Payload:       append([]model.ObjectID(nil), s.buffer...),
		NarrativeRefs: append([]model.NarrativeRef(nil), s.narrativeRefs...),
		State:         s.state,
	}
	id, err := s.store.PutTyped(ctx, wc)
	if err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: store work-commit: %w", err)
	}
	if err := s.refs.SetStage(id); err != nil {
		return model.ObjectID{}, fmt.Errorf("staging: advance stage pointer: %w", err)
	}

	s.buffer = nil
	s.narrativeRefs = nil
	return id, nil
}

func (s *Session) loadWorkCommit(ctx context.Context, id model.ObjectID) (*model.WorkCommit, error) {
	v, err := s.store.GetTyped(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("staging: load work-commit %s: %w", id, err)
	}
	wc, ok := v.(*model.WorkCommit)
	if !ok {
		return nil, fmt.Errorf("staging: object %s is not a WorkCommit", id)
	}
	return wc, nil
}

// RecoveryOutcome reports whether Recover found a reconstructable chain
// or had to reset the staging pointer (spec.md §4.5 "Recovery").
type RecoveryOutcome struct {
	Reconstructed bool
	Reset         bool
}

// Recover inspects the staging pointer on open. If it points to a
// readable work-commit whose base matches canonical head (or has
// canonical head as an ancestor), the session resumes; otherwise STAGE is
// cleared and a RecoveryReset is reported.
func (s *Session) Recover(ctx context.Context, isAncestor func(ctx context.Context, ancestor, of model.ObjectID) (bool, error)) (RecoveryOutcome, error) {
	head, err := s.refs.Head()
	if err != nil {
		return RecoveryOutcome{}, fmt.Errorf("staging: read canonical head: %w", err)
	}
	stageID, present, err := s.refs.Stage()
	if err != nil {
		return RecoveryOutcome{}, fmt.Errorf("staging: read stage: %w", err)
	}
	if !present {
		return RecoveryOutcome{}, nil
	}

	wc, err := s.loadWorkCommit(ctx, stageID)
	if err != nil {
		if resetErr := s.refs.DeleteStage(); resetErr != nil {
			return RecoveryOutcome{}, resetErr
		}
		return RecoveryOutcome{Reset: true}, nil
	}

	ok := wc.Base == head
	if !ok && isAncestor != nil {
		ok, err = isAncestor(ctx, head, wc.Base)
		if err != nil {
			return RecoveryOutcome{}, err
		}
	}
	if !ok {
		if err := s.refs.DeleteStage(); err != nil {
			return RecoveryOutcome{}, err
		}
		return RecoveryOutcome{Reset: true}, nil
	}

	s.id = wc.SessionID
	s.state = wc.State
	s.buffer = nil
	s.narrativeRefs = nil
	return RecoveryOutcome{Reconstructed: true}, nil
}
