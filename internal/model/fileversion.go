package model

import (
	"fmt"

	"github.com/agentctx/ctx/internal/codec"
)

// FileVersion binds a logical file to one content snapshot. Path carries
// the normalized path FileID was derived from (model.FileNodeID), so
// compaction can place the snapshot at the right tree entry without
// inverting the hash.
type FileVersion struct {
	FileID    NodeID
	Path      string
	BlobID    ObjectID
	ByteCount uint64
	HasLines  bool
	LineCount uint64
}

func (f FileVersion) encode(w *codec.Writer) error {
	f.FileID.encode(w)
	if err := w.PutString(f.Path); err != nil {
		return fmt.Errorf("model: encode file version path: %w", err)
	}
	f.BlobID.encode(w)
	w.PutUvarint(f.ByteCount)
	w.PutBool(f.HasLines)
	if f.HasLines {
		w.PutUvarint(f.LineCount)
	}
	return nil
}

// EncodeFileVersion renders a FileVersion to canonical bytes for storage
// as a plain Blob object (observe_file_write's payload entry, spec.md
// §4.5); FileVersion has no TypedKind tag of its own since it is never
// looked up by id without already knowing its shape.
func EncodeFileVersion(f FileVersion) []byte {
	w := codec.NewWriter()
	if err := f.encode(w); err != nil {
		panic(err) // Path is always valid UTF-8 produced by NormalizePath
	}
	return w.Bytes()
}

// DecodeFileVersion reverses EncodeFileVersion.
func DecodeFileVersion(b []byte) (*FileVersion, error) {
	r := codec.NewReader(b)
	f, err := decodeFileVersion(r)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func decodeFileVersion(r *codec.Reader) (FileVersion, error) {
	var f FileVersion
	fid, err := decodeNodeID(r)
	if err != nil {
		return f, err
	}
	path, err := r.String()
	if err != nil {
		return f, fmt.Errorf("model: decode file version path: %w", err)
	}
	bid, err := decodeObjectID(r)
	if err != nil {
		return f, err
	}
	f.FileID, f.Path, f.BlobID = fid, path, bid
	f.ByteCount = r.Uvarint()
	f.HasLines = r.Bool()
	if f.HasLines {
		f.LineCount = r.Uvarint()
	}
	return f, nil
}

// NarrativeRef names a Markdown snapshot blob inside a commit.
type NarrativeRef struct {
	Path   string
	Stream string
	Role   NarrativeRole
	BlobID ObjectID
}

func (n NarrativeRef) encode(w *codec.Writer) error {
	if err := w.PutString(n.Path); err != nil {
		return err
	}
	if err := w.PutString(n.Stream); err != nil {
		return err
	}
	w.PutUvarint(uint64(n.Role))
	n.BlobID.encode(w)
	return nil
}

func decodeNarrativeRef(r *codec.Reader) (NarrativeRef, error) {
	var n NarrativeRef
	path, err := r.String()
	if err != nil {
		return n, err
	}
	stream, err := r.String()
	if err != nil {
		return n, err
	}
	n.Path, n.Stream = path, stream
	n.Role = NarrativeRole(r.Uvarint())
	bid, err := decodeObjectID(r)
	if err != nil {
		return n, err
	}
	n.BlobID = bid
	return n, nil
}

func encodeNarrativeRefs(w *codec.Writer, refs []NarrativeRef) error {
	w.PutUvarint(uint64(len(refs)))
	for _, ref := range refs {
		if err := ref.encode(w); err != nil {
			return fmt.Errorf("model: encode narrative ref %q: %w", ref.Path, err)
		}
	}
	return nil
}

func decodeNarrativeRefs(r *codec.Reader) ([]NarrativeRef, error) {
	n := r.Uvarint()
	if n == 0 {
		return nil, nil
	}
	refs := make([]NarrativeRef, 0, n)
	for i := uint64(0); i < n; i++ {
		ref, err := decodeNarrativeRef(r)
		if err != nil {
			return nil, fmt.Errorf("model: decode narrative ref %d: %w", i, err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func encodeObjectIDList(w *codec.Writer, ids []ObjectID) {
	w.PutUvarint(uint64(len(ids)))
	for _, id := range ids {
		id.encode(w)
	}
}

func decodeObjectIDList(r *codec.Reader) ([]ObjectID, error) {
	n := r.Uvarint()
	if n == 0 {
		return nil, nil
	}
	ids := make([]ObjectID, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := decodeObjectID(r)
		if err != nil {
			return nil, fmt.Errorf("model: decode object id %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
