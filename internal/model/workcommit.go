package model

import (
	"fmt"

	"github.com/agentctx/ctx/internal/codec"
)

// SessionStateTag is the closed session-state discriminant (spec.md §4.5).
type SessionStateTag uint8

const (
	StateRunning SessionStateTag = iota
	StateAwaitingUser
	StateInterrupted
	StatePendingComplete
	StateComplete
	StateAborted
)

func (t SessionStateTag) String() string {
	switch t {
	case StateRunning:
		return "Running"
	case StateAwaitingUser:
		return "AwaitingUser"
	case StateInterrupted:
		return "Interrupted"
	case StatePendingComplete:
		return "PendingComplete"
	case StateComplete:
		return "Complete"
	case StateAborted:
		return "Aborted"
	default:
		return fmt.Sprintf("SessionStateTag(%d)", uint8(t))
	}
}

// SessionState is the tagged variant persisted on every work-commit.
type SessionState struct {
	Tag SessionStateTag

	Question string // AwaitingUser
	AskedAt  int64  // AwaitingUser

	UserMessage string // Interrupted

	Summary string // PendingComplete

	Reason string // Aborted
}

func RunningState() SessionState { return SessionState{Tag: StateRunning} }

func (s SessionState) encode(w *codec.Writer) error {
	w.PutUvarint(uint64(s.Tag))
	var err error
	switch s.Tag {
	case StateAwaitingUser:
		if err = w.PutString(s.Question); err != nil {
			return err
		}
		w.PutVarint(s.AskedAt)
	case StateInterrupted:
		err = w.PutString(s.UserMessage)
	case StatePendingComplete:
		err = w.PutString(s.Summary)
	case StateAborted:
		err = w.PutString(s.Reason)
	}
	return err
}

func decodeSessionState(r *codec.Reader) (SessionState, error) {
	var s SessionState
	s.Tag = SessionStateTag(r.Uvarint())
	var err error
	switch s.Tag {
	case StateAwaitingUser:
		if s.Question, err = r.String(); err != nil {
			return s, err
		}
		s.AskedAt = r.Varint()
	case StateInterrupted:
		s.UserMessage, err = r.String()
	case StatePendingComplete:
		s.Summary, err = r.String()
	case StateAborted:
		s.Reason, err = r.String()
	}
	return s, err
}

// StepKind names the observation kind a flush bundled (spec.md §4.5).
type StepKind string

const (
	StepFileRead      StepKind = "file_read"
	StepFileWrite     StepKind = "file_write"
	StepCommand       StepKind = "command"
	StepNote          StepKind = "note"
	StepPlan          StepKind = "plan"
	StepRelations     StepKind = "relations"
	StepEmptyFlush    StepKind = "empty_flush"
)

// WorkCommit is a staging-chain node created by a flush (spec.md §3, §4.5).
type WorkCommit struct {
	Parent        ObjectID
	Base          ObjectID
	SessionID     string
	CreatedAt     int64
	StepKind      StepKind
	Payload       []ObjectID
	NarrativeRefs []NarrativeRef
	State         SessionState
}

func (w WorkCommit) TypedKind() TypedKind { return TypedWorkCommit }

func (wc WorkCommit) Encode() []byte {
	w := codec.NewWriter()
	wc.Parent.encode(w)
	wc.Base.encode(w)
	if err := w.PutString(wc.SessionID); err != nil {
		panic(fmt.Errorf("model: encode work commit session id: %w", err))
	}
	w.PutVarint(wc.CreatedAt)
	if err := w.PutString(string(wc.StepKind)); err != nil {
		panic(fmt.Errorf("model: encode work commit step kind: %w", err))
	}
	encodeObjectIDList(w, wc.Payload)
	if err := encodeNarrativeRefs(w, wc.NarrativeRefs); err != nil {
		panic(fmt.Errorf("model: encode work commit: %w", err))
	}
	if err := wc.State.encode(w); err != nil {
		panic(fmt.Errorf("model: encode work commit state: %w", err))
	}
	return w.Bytes()
}

func DecodeWorkCommit(b []byte) (*WorkCommit, error) {
	r := codec.NewReader(b)
	var wc WorkCommit
	parent, err := decodeObjectID(r)
	if err != nil {
		return nil, err
	}
	base, err := decodeObjectID(r)
	if err != nil {
		return nil, err
	}
	wc.Parent, wc.Base = parent, base
	sid, err := r.String()
	if err != nil {
		return nil, err
	}
	wc.SessionID = sid
	wc.CreatedAt = r.Varint()
	sk, err := r.String()
	if err != nil {
		return nil, err
	}
	wc.StepKind = StepKind(sk)
	payload, err := decodeObjectIDList(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode work commit payload: %w", err)
	}
	wc.Payload = payload
	refs, err := decodeNarrativeRefs(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode work commit narrative refs: %w", err)
	}
	wc.NarrativeRefs = refs
	state, err := decodeSessionState(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode work commit state: %w", err)
	}
	wc.State = state
	return &wc, nil
}
