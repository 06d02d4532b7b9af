package staging

import (
	"context"
	"fmt"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
)

// ExportedObject is one object moved opaquely between stores: its kind and
// raw payload, enough for the target store to recompute the same content
// id on import.
type ExportedObject struct {
	Kind    model.Kind `yaml:"kind" json:"kind"`
	Payload []byte     `yaml:"payload" json:"payload"`
}

// ExportedWorkCommit mirrors model.WorkCommit but names its payload ids'
// objects by position in Objects rather than by id, so the transcript
// stays self-contained.
type ExportedWorkCommit struct {
	CreatedAt     int64               `yaml:"created_at" json:"created_at"`
	StepKind      model.StepKind      `yaml:"step_kind" json:"step_kind"`
	State         model.SessionState  `yaml:"state" json:"state"`
	NarrativeRefs []model.NarrativeRef `yaml:"narrative_refs,omitempty" json:"narrative_refs,omitempty"`
	Payload       []ExportedObject    `yaml:"payload,omitempty" json:"payload,omitempty"`
}

// ExportedSession is the portable, human-diffable transcript
// export_session/import_session move between repository clones (spec.md
// §6.3, detailed in SPEC_FULL.md §4.5): the full work-commit chain from
// base to head, oldest first, with every artifact inlined.
type ExportedSession struct {
	SessionID string               `yaml:"session_id" json:"session_id"`
	Base      string               `yaml:"base" json:"base"`
	Entries   []ExportedWorkCommit `yaml:"entries" json:"entries"`
}

// Export walks the active staging chain from base to head and inlines
// every artifact it references, producing a transcript that can be
// serialized (by the caller, as YAML) and later replayed with Import
// against a different repository clone.
func (s *Session) Export(ctx context.Context) (*ExportedSession, error) {
	stageHead, present, err := s.refs.Stage()
	if err != nil {
		return nil, fmt.Errorf("staging: read stage: %w", err)
	}
	if !present {
		return nil, ctxerr.New(ctxerr.KindNoActiveSession, "export_session", "", fmt.Errorf("no active session"))
	}

	entries, base, err := s.walkChain(ctx, stageHead)
	if err != nil {
		return nil, err
	}

	exported := &ExportedSession{SessionID: s.id, Base: base.String()}
	for _, e := range entries {
		ew := ExportedWorkCommit{
			CreatedAt:     e.wc.CreatedAt,
			StepKind:      e.wc.StepKind,
			State:         e.wc.State,
			NarrativeRefs: e.wc.NarrativeRefs,
		}
		for _, pid := range e.wc.Payload {
			kind, payload, err := s.store.GetRaw(ctx, pid)
			if err != nil {
				return nil, fmt.Errorf("staging: export artifact %s: %w", pid, err)
			}
			ew.Payload = append(ew.Payload, ExportedObject{Kind: kind, Payload: payload})
		}
		exported.Entries = append(exported.Entries, ew)
	}
	return exported, nil
}

// Import replays an exported transcript against this session's store,
// deduplicating every artifact by content id, then rebuilds the
// work-commit chain and sets it as the active staging pointer. It refuses
// to import over an already-active session (StagingConflict).
func (s *Session) Import(ctx context.Context, exported *ExportedSession) error {
	if _, present, err := s.refs.Stage(); err != nil {
		return fmt.Errorf("staging: read stage: %w", err)
	} else if present {
		return ctxerr.New(ctxerr.KindStagingConflict, "import_session", "", fmt.Errorf("a session is already active"))
	}

	base, err := model.ParseObjectID(exported.Base)
	if err != nil {
		return fmt.Errorf("staging: import: parse base %q: %w", exported.Base, err)
	}

	var parent model.ObjectID
	var state model.SessionState
	for i, ew := range exported.Entries {
		payload := make([]model.ObjectID, 0, len(ew.Payload))
		for _, obj := range ew.Payload {
			id, err := s.store.PutRaw(ctx, obj.Kind, obj.Payload)
			if err != nil {
				return fmt.Errorf("staging: import artifact %d of entry %d: %w", len(payload), i, err)
			}
			payload = append(payload, id)
		}

		wc := model.WorkCommit{
			Parent:        parent,
			Base:          base,
			SessionID:     exported.SessionID,
			CreatedAt:     ew.CreatedAt,
			StepKind:      ew.StepKind,
			Payload:       payload,
			NarrativeRefs: ew.NarrativeRefs,
			State:         ew.State,
		}
		id, err := s.store.PutTyped(ctx, wc)
		if err != nil {
			return fmt.Errorf("staging: import: store work-commit %d: %w", i, err)
		}
		parent = id
		state = ew.State
	}

	if parent.IsZero() {
		return ctxerr.New(ctxerr.KindDeserializationFailed, "import_session", "", fmt.Errorf("exported session has no entries"))
	}
	if err := s.refs.SetStage(parent); err != nil {
		return fmt.Errorf("staging: import: set stage: %w", err)
	}

	s.id = exported.SessionID
	s.state = state
	s.buffer = nil
	s.narrativeRefs = nil
	return nil
}
