// Package staging implements the session state machine, the work-commit
// staging chain, and compaction into canonical commits (spec.md §4.5).
// The closed transition table is enforced the way gate.go enforces its own
// closed hook/mode vocabulary: a fixed switch over tagged states rather
// than an open-ended handler registry.
package staging

import (
	"context"
	"fmt"
	"time"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
	"github.com/agentctx/ctx/internal/refs"
	"github.com/agentctx/ctx/internal/telemetry"
)

// Transition identifies one of the named edges of the session state
// machine (spec.md §4.5).
type Transition string

const (
	TransitionStart     Transition = "start"
	TransitionAsk       Transition = "ask"
	TransitionRespond   Transition = "respond"
	TransitionInterrupt Transition = "interrupt"
	TransitionResume    Transition = "resume"
	TransitionFinish    Transition = "finish"
	TransitionConfirm   Transition = "confirm"
	TransitionModify    Transition = "modify"
	TransitionAbort     Transition = "abort"
)

// Next computes the resulting SessionState for a transition applied to
// from, or returns InvalidStateTransition if the edge does not exist in
// the closed table.
func Next(from model.SessionState, t Transition, payload any) (model.SessionState, error) {
	fail := func() (model.SessionState, error) {
		return model.SessionState{}, ctxerr.New(ctxerr.KindInvalidStateTransition, string(t), from.Tag.String(), fmt.Errorf("no transition %q from state %s", t, from.Tag))
	}

	switch from.Tag {
	case model.StateRunning:
		switch t {
		case TransitionAsk:
			q, _ := payload.(AskPayload)
			return model.SessionState{Tag: model.StateAwaitingUser, Question: q.Question, AskedAt: q.AskedAt}, nil
		case TransitionInterrupt:
			m, _ := payload.(string)
			return model.SessionState{Tag: model.StateInterrupted, UserMessage: m}, nil
		case TransitionFinish:
			s, _ := payload.(string)
			return model.SessionState{Tag: model.StatePendingComplete, Summary: s}, nil
		case TransitionAbort:
			r, _ := payload.(string)
			return model.SessionState{Tag: model.StateAborted, Reason: r}, nil
		}
		return fail()
	case model.StateAwaitingUser:
		switch t {
		case TransitionRespond:
			return model.RunningState(), nil
		case TransitionAbort:
			r, _ := payload.(string)
			return model.SessionState{Tag: model.StateAborted, Reason: r}, nil
		}
		return fail()
	case model.StateInterrupted:
		switch t {
		case TransitionResume:
			return model.RunningState(), nil
		}
		return fail()
	case model.StatePendingComplete:
		switch t {
		case TransitionConfirm:
			return model.SessionState{Tag: model.StateComplete}, nil
		case TransitionModify:
			return model.RunningState(), nil
		case TransitionAbort:
			r, _ := payload.(string)
			return model.SessionState{Tag: model.StateAborted, Reason: r}, nil
		}
		return fail()
	case model.StateComplete, model.StateAborted:
		// compact is modeled out-of-band (it ends the session, it does
		// not produce a new SessionState), so no transition leaves these.
		return fail()
	default:
		return fail()
	}
}

// AskPayload carries the data an "ask" transition attaches to the
// resulting AwaitingUser state.
type AskPayload struct {
	Question string
	AskedAt  int64
}

// StaleStatus is the result of check_stale_session (spec.md §4.5).
type StaleStatus uint8

const (
	StaleNone StaleStatus = iota
	StaleShouldAsk
	StaleAutoCompacted
)

// StalePolicy holds the ask/auto-compact idle thresholds.
type StalePolicy struct {
	AskThreshold         time.Duration
	AutoCompactThreshold time.Duration
}

// DefaultStalePolicy matches spec.md §4.5's defaults (24h / 7d).
func DefaultStalePolicy() StalePolicy {
	return StalePolicy{AskThreshold: 24 * time.Hour, AutoCompactThreshold: 7 * 24 * time.Hour}
}

// Session drives one session's staging chain against the object store and
// refs.
type Session struct {
	store *objstore.Store
	refs  *refs.Store

	id      string
	buffer  []model.ObjectID
	narrativeRefs []model.NarrativeRef
	state   model.SessionState
}

// New constructs a Session bound to store/refs. It does not touch disk;
// Start or Recover must be called first.
func New(store *objstore.Store, refStore *refs.Store) *Session {
	return &Session{store: store, refs: refStore}
}

// Start begins a new session: writes an initial work-commit whose parent
// is empty (this is the base) directly onto the staging head.
func (s *Session) Start(ctx context.Context, sessionID string, createdAt int64) error {
	ctx, span := telemetry.StartSpan(ctx, "ctx.staging.start_session")
	defer span.End()

	head, err := s.refs.Head()
	if err != nil {
		return fmt.Errorf("staging: read canonical head: %w", err)
	}
	s.id = sessionID
	s.state = model.RunningState()
	s.buffer = nil
	s.narrativeRefs = nil

	wc := model.WorkCommit{
		Parent:    model.ObjectID{},
		Base:      head,
		SessionID: sessionID,
		CreatedAt: createdAt,
		StepKind:  model.StepEmptyFlush,
		State:     s.state,
	}
	id, err := s.store.PutTyped(ctx, wc)
	if err != nil {
		return fmt.Errorf("staging: store initial work-commit: %w", err)
	}
	return s.refs.SetStage(id)
}

// ActiveState returns the session's current in-memory state.
func (s *Session) ActiveState() model.SessionState { return s.state }

// SetState applies a named transition, failing with
// InvalidStateTransition if it is not in the closed table.
func (s *Session) SetState(t Transition, payload any) error {
	next, err := Next(s.state, t, payload)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Observe buffers one artifact id produced by an observation call
// (observe_file_read, observe_file_write, etc; spec.md §4.5).
func (s *Session) Observe(id model.ObjectID) {
	s.buffer = append(s.buffer, id)
}

// ObserveNarrative records that a narrative file changed this step, to be
// snapshotted into the next flush's narrative_refs.
func (s *Session) ObserveNarrative(ref model.NarrativeRef) {
	s.narrativeRefs = append(s.narrativeRefs, ref)
}
