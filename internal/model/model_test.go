package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func idFromByte(b byte) ObjectID {
	var id ObjectID
	id[0] = b
	id[31] = b
	return id
}

func TestTreeRoundTrip(t *testing.T) {
	tree := NewTree([]TreeEntry{
		{Name: "b.txt", Kind: KindBlob, ID: idFromByte(2)},
		{Name: "a.txt", Kind: KindBlob, ID: idFromByte(1)},
		{Name: "sub", Kind: KindTyped, ID: idFromByte(3)},
	})
	encoded := tree.Encode()
	decoded, err := DecodeTree(encoded)
	require.NoError(t, err)
	require.Equal(t, tree, *decoded)

	// Canonical law: re-encoding the decoded value reproduces the same bytes.
	require.Equal(t, encoded, decoded.Encode())

	// Entries must be name-sorted regardless of construction order.
	require.Equal(t, "a.txt", decoded.Entries[0].Name)
}

func TestTreeRejectsUnsortedOnDecode(t *testing.T) {
	tree := Tree{Entries: []TreeEntry{
		{Name: "b.txt", Kind: KindBlob, ID: idFromByte(2)},
		{Name: "a.txt", Kind: KindBlob, ID: idFromByte(1)},
	}}
	_, err := DecodeTree(tree.Encode())
	require.Error(t, err)
}

func TestCommitRoundTrip(t *testing.T) {
	c := Commit{
		Parents:   []ObjectID{idFromByte(1)},
		Timestamp: 1700000000,
		Message:   "initial",
		RootTree:  idFromByte(2),
		EdgeBatches: []ObjectID{idFromByte(3)},
		NarrativeRefs: []NarrativeRef{
			{Path: "overview.md", Stream: "main", Role: RoleOverview, BlobID: idFromByte(4)},
		},
		Type: CommitType{Tag: CommitStaleAutoCompact, IdleSecs: 700000},
	}
	encoded := c.Encode()
	decoded, err := DecodeCommit(encoded)
	require.NoError(t, err)
	require.Equal(t, c, *decoded)
	require.Equal(t, encoded, decoded.Encode())
}

func TestFileNodeIDIsStableAcrossContent(t *testing.T) {
	a := FileNodeID(NormalizePath("src/a.go"))
	b := FileNodeID(NormalizePath("./src/a.go"))
	require.Equal(t, a, b, "normalization should make equivalent paths hash identically")
	require.NotEqual(t, a, FileNodeID("src/b.go"))
}

func TestFileVersionRoundTrip(t *testing.T) {
	fv := FileVersion{
		FileID:    FileNodeID("src/a.go"),
		Path:      "src/a.go",
		BlobID:    idFromByte(9),
		ByteCount: 42,
		HasLines:  true,
		LineCount: 3,
	}
	encoded := EncodeFileVersion(fv)
	decoded, err := DecodeFileVersion(encoded)
	require.NoError(t, err)
	require.Equal(t, fv, *decoded)
}

func TestWorkCommitRoundTrip(t *testing.T) {
	wc := WorkCommit{
		Parent:    idFromByte(1),
		Base:      idFromByte(2),
		SessionID: "sess-1",
		CreatedAt: 42,
		StepKind:  StepFileWrite,
		Payload:   []ObjectID{idFromByte(5)},
		State:     SessionState{Tag: StateAwaitingUser, Question: "proceed?", AskedAt: 99},
	}
	encoded := wc.Encode()
	decoded, err := DecodeWorkCommit(encoded)
	require.NoError(t, err)
	require.Equal(t, wc, *decoded)
}

func TestEdgeBatchDedupsAndSorts(t *testing.T) {
	n1 := NodeID{Kind: NodeFile, ID: idFromByte(1)}
	n2 := NodeID{Kind: NodeFile, ID: idFromByte(2)}
	batch := NewEdgeBatch([]Edge{
		{From: n2, To: n1, Label: LabelImports, Evidence: Evidence{Tool: "t", Confidence: ConfidenceHigh}},
		{From: n1, To: n2, Label: LabelImports, Evidence: Evidence{Tool: "t", Confidence: ConfidenceHigh}},
		{From: n1, To: n2, Label: LabelImports, Evidence: Evidence{Tool: "dup", Confidence: ConfidenceLow}},
	}, 10)
	require.Len(t, batch.Edges, 2)
	require.Equal(t, n1, batch.Edges[0].From)

	encoded := batch.Encode()
	decoded, err := DecodeEdgeBatch(encoded)
	require.NoError(t, err)
	require.Equal(t, batch, *decoded)
}

func TestTypedDispatch(t *testing.T) {
	tree := NewTree(nil)
	payload := EncodeTyped(tree)
	decoded, err := DecodeTyped(payload)
	require.NoError(t, err)
	_, ok := decoded.(*Tree)
	require.True(t, ok)
}

func TestSessionStateTransitionTagsAreStable(t *testing.T) {
	// Stability law: numeric discriminants must never be renumbered, since
	// already-written work-commits on disk encode them positionally.
	require.EqualValues(t, 0, StateRunning)
	require.EqualValues(t, 1, StateAwaitingUser)
	require.EqualValues(t, 2, StateInterrupted)
	require.EqualValues(t, 3, StatePendingComplete)
	require.EqualValues(t, 4, StateComplete)
	require.EqualValues(t, 5, StateAborted)
}
