// Package model defines the typed entities of SPEC_FULL.md §3 (Tree,
// Commit, WorkCommit, EdgeBatch, Edge, NodeId, Evidence, FileVersion,
// NarrativeRef, SessionState) and their canonical binary encode/decode
// pairs built on internal/codec.
package model

import (
	"encoding/hex"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"lukechampine.com/blake3"

	"github.com/agentctx/ctx/internal/codec"
)

// ObjectID is the 32-byte BLAKE3 digest of an object's canonical envelope.
type ObjectID [32]byte

func (id ObjectID) String() string { return hex.EncodeToString(id[:]) }

func (id ObjectID) IsZero() bool { return id == ObjectID{} }

// ParseObjectID parses a lowercase 64-hex string.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("model: invalid object id %q: %w", s, err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("model: object id %q has wrong length", s)
	}
	copy(id[:], b)
	return id, nil
}

func (id ObjectID) encode(w *codec.Writer) { w.PutRaw(id[:]) }

func decodeObjectID(r *codec.Reader) (ObjectID, error) {
	var id ObjectID
	b, err := r.Raw(len(id))
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// Kind is the two-member envelope kind discriminant (spec.md §3).
type Kind uint8

const (
	KindBlob Kind = iota
	KindTyped
)

// NodeKind enumerates the closed set of logical node kinds a NodeId may
// carry. Append-only: new kinds are added at the end.
type NodeKind uint8

const (
	NodeFile NodeKind = iota
	NodeModule
	NodeItem
	NodePackage
	NodeTarget
	NodeCrate
	NodeTask
	NodeNote
	NodeDecision
	NodeDiagnostic
)

func (k NodeKind) String() string {
	switch k {
	case NodeFile:
		return "File"
	case NodeModule:
		return "Module"
	case NodeItem:
		return "Item"
	case NodePackage:
		return "Package"
	case NodeTarget:
		return "Target"
	case NodeCrate:
		return "Crate"
	case NodeTask:
		return "Task"
	case NodeNote:
		return "Note"
	case NodeDecision:
		return "Decision"
	case NodeDiagnostic:
		return "Diagnostic"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// NodeID is a logical identity for a graph node, stable across content
// snapshots (spec.md §3, §9 "Stable identity across content changes").
type NodeID struct {
	Kind NodeKind
	ID   ObjectID
}

func (n NodeID) String() string { return fmt.Sprintf("%s:%s", n.Kind, n.ID) }

func (n NodeID) encode(w *codec.Writer) {
	w.PutUvarint(uint64(n.Kind))
	n.ID.encode(w)
}

func decodeNodeID(r *codec.Reader) (NodeID, error) {
	var n NodeID
	n.Kind = NodeKind(r.Uvarint())
	id, err := decodeObjectID(r)
	if err != nil {
		return n, err
	}
	n.ID = id
	return n, nil
}

// NormalizePath puts a file path into the canonical form NodeID derivation
// and index lookups share: forward slashes, no leading slash, cleaned of
// "." and ".." segments.
func NormalizePath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "/")
	return path.Clean(p)
}

// FileNodeID derives a File node's identity from its normalized path
// rather than from any content hash, so the same logical file keeps one
// identity across rewrites (spec.md §9 "Stable identity across content
// changes"): content is reached from this id through a FileVersion and a
// commit's snapshot pointers, never by treating the id itself as a blob id.
func FileNodeID(normalizedPath string) NodeID {
	sum := blake3.Sum256([]byte("file\x00" + normalizedPath))
	return NodeID{Kind: NodeFile, ID: ObjectID(sum)}
}

// Label is the closed edge-label vocabulary (spec.md §4.4). Extension
// requires a coordinated, append-only enum change.
type Label uint8

const (
	LabelContains Label = iota
	LabelDefines
	LabelHasVersion
	LabelDependsOn
	LabelTargetOf
	LabelCrateFromTarget
	LabelImports
	LabelReferences
	LabelCalls
	LabelImplements
	LabelUsesType
	LabelMentions
	LabelUpdatedIn
	LabelDerivedFrom
)

var labelNames = [...]string{
	"Contains", "Defines", "HasVersion",
	"DependsOn", "TargetOf", "CrateFromTarget",
	"Imports", "References", "Calls", "Implements", "UsesType",
	"Mentions", "UpdatedIn", "DerivedFrom",
}

func (l Label) String() string {
	if int(l) < len(labelNames) {
		return labelNames[l]
	}
	return fmt.Sprintf("Label(%d)", uint8(l))
}

// Confidence is the closed evidence-confidence vocabulary.
type Confidence uint8

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceLow:
		return "Low"
	case ConfidenceMedium:
		return "Medium"
	case ConfidenceHigh:
		return "High"
	default:
		return fmt.Sprintf("Confidence(%d)", uint8(c))
	}
}

// NarrativeRole is the closed narrative-snapshot role vocabulary.
type NarrativeRole uint8

const (
	RoleOverview NarrativeRole = iota
	RoleDecision
	RoleLog
	RoleTask
	RoleWork
)

func (r NarrativeRole) String() string {
	switch r {
	case RoleOverview:
		return "overview"
	case RoleDecision:
		return "decision"
	case RoleLog:
		return "log"
	case RoleTask:
		return "task"
	case RoleWork:
		return "work"
	default:
		return fmt.Sprintf("NarrativeRole(%d)", uint8(r))
	}
}
