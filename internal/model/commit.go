package model

import (
	"fmt"

	"github.com/agentctx/ctx/internal/codec"
)

// CommitTypeTag is the closed commit-type discriminant (spec.md §3).
type CommitTypeTag uint8

const (
	CommitNormal CommitTypeTag = iota
	CommitAbandoned
	CommitStaleAutoCompact
	CommitInterruptedByNewTask
)

// CommitType carries the tag plus whichever payload that tag defines.
type CommitType struct {
	Tag             CommitTypeTag
	IdleSecs        uint64 // StaleAutoCompact
	InterruptSummary string // InterruptedByNewTask
}

func (c CommitType) encode(w *codec.Writer) error {
	w.PutUvarint(uint64(c.Tag))
	switch c.Tag {
	case CommitStaleAutoCompact:
		w.PutUvarint(c.IdleSecs)
	case CommitInterruptedByNewTask:
		if err := w.PutString(c.InterruptSummary); err != nil {
			return err
		}
	}
	return nil
}

func decodeCommitType(r *codec.Reader) (CommitType, error) {
	var c CommitType
	c.Tag = CommitTypeTag(r.Uvarint())
	switch c.Tag {
	case CommitStaleAutoCompact:
		c.IdleSecs = r.Uvarint()
	case CommitInterruptedByNewTask:
		s, err := r.String()
		if err != nil {
			return c, err
		}
		c.InterruptSummary = s
	}
	return c, nil
}

// Commit is a canonical history node (spec.md §3).
type Commit struct {
	Parents       []ObjectID
	Timestamp     int64
	Message       string
	RootTree      ObjectID
	EdgeBatches   []ObjectID
	NarrativeRefs []NarrativeRef

	HasBuildGraphSnapshot bool
	BuildGraphSnapshot    ObjectID
	HasSemanticGraphSnapshot bool
	SemanticGraphSnapshot    ObjectID
	HasDiagnosticsSnapshot bool
	DiagnosticsSnapshot    ObjectID

	Type CommitType
}

func (c Commit) TypedKind() TypedKind { return TypedCommit }

func (c Commit) Encode() []byte {
	w := codec.NewWriter()
	encodeObjectIDList(w, c.Parents)
	w.PutVarint(c.Timestamp)
	if err := w.PutString(c.Message); err != nil {
		panic(fmt.Errorf("model: encode commit message: %w", err))
	}
	c.RootTree.encode(w)
	encodeObjectIDList(w, c.EdgeBatches)
	if err := encodeNarrativeRefs(w, c.NarrativeRefs); err != nil {
		panic(fmt.Errorf("model: encode commit: %w", err))
	}
	w.PutBool(c.HasBuildGraphSnapshot)
	if c.HasBuildGraphSnapshot {
		c.BuildGraphSnapshot.encode(w)
	}
	w.PutBool(c.HasSemanticGraphSnapshot)
	if c.HasSemanticGraphSnapshot {
		c.SemanticGraphSnapshot.encode(w)
	}
	w.PutBool(c.HasDiagnosticsSnapshot)
	if c.HasDiagnosticsSnapshot {
		c.DiagnosticsSnapshot.encode(w)
	}
	if err := c.Type.encode(w); err != nil {
		panic(fmt.Errorf("model: encode commit type: %w", err))
	}
	return w.Bytes()
}

func DecodeCommit(b []byte) (*Commit, error) {
	r := codec.NewReader(b)
	var c Commit
	parents, err := decodeObjectIDList(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode commit parents: %w", err)
	}
	c.Parents = parents
	c.Timestamp = r.Varint()
	msg, err := r.String()
	if err != nil {
		return nil, fmt.Errorf("model: decode commit message: %w", err)
	}
	c.Message = msg
	rootTree, err := decodeObjectID(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode commit root tree: %w", err)
	}
	c.RootTree = rootTree
	batches, err := decodeObjectIDList(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode commit edge batches: %w", err)
	}
	c.EdgeBatches = batches
	refs, err := decodeNarrativeRefs(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode commit narrative refs: %w", err)
	}
	c.NarrativeRefs = refs

	c.HasBuildGraphSnapshot = r.Bool()
	if c.HasBuildGraphSnapshot {
		id, err := decodeObjectID(r)
		if err != nil {
			return nil, err
		}
		c.BuildGraphSnapshot = id
	}
	c.HasSemanticGraphSnapshot = r.Bool()
	if c.HasSemanticGraphSnapshot {
		id, err := decodeObjectID(r)
		if err != nil {
			return nil, err
		}
		c.SemanticGraphSnapshot = id
	}
	c.HasDiagnosticsSnapshot = r.Bool()
	if c.HasDiagnosticsSnapshot {
		id, err := decodeObjectID(r)
		if err != nil {
			return nil, err
		}
		c.DiagnosticsSnapshot = id
	}
	ct, err := decodeCommitType(r)
	if err != nil {
		return nil, fmt.Errorf("model: decode commit type: %w", err)
	}
	c.Type = ct
	return &c, nil
}

// IsInitial reports whether c has no parents (the repository's first commit).
func (c Commit) IsInitial() bool { return len(c.Parents) == 0 }
