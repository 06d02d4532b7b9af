package model

import (
	"fmt"
	"sort"

	"github.com/agentctx/ctx/internal/codec"
)

// TreeEntry is one (name, kind, id) member of a Tree, per spec.md §3.
type TreeEntry struct {
	Name string
	Kind Kind // KindBlob or KindTyped (a nested Tree is Typed)
	ID   ObjectID
}

// Tree is a directory-like snapshot. Entries are held in name-sorted order
// so two logically equal trees always encode identically (the canonical
// law, spec.md §4.3).
type Tree struct {
	Entries []TreeEntry
}

func NewTree(entries []TreeEntry) Tree {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return Tree{Entries: sorted}
}

func (t Tree) TypedKind() TypedKind { return TypedTree }

func (t Tree) Encode() []byte {
	w := codec.NewWriter()
	w.PutUvarint(uint64(len(t.Entries)))
	for _, e := range t.Entries {
		_ = w.PutString(e.Name)
		w.PutUvarint(uint64(e.Kind))
		e.ID.encode(w)
	}
	return w.Bytes()
}

func DecodeTree(b []byte) (*Tree, error) {
	r := codec.NewReader(b)
	n := r.Uvarint()
	entries := make([]TreeEntry, 0, n)
	var prevName string
	for i := uint64(0); i < n; i++ {
		name, err := r.String()
		if err != nil {
			return nil, fmt.Errorf("model: decode tree entry %d name: %w", i, err)
		}
		if i > 0 && name < prevName {
			return nil, fmt.Errorf("model: tree entries not in sorted order at %d", i)
		}
		prevName = name
		kind := Kind(r.Uvarint())
		id, err := decodeObjectID(r)
		if err != nil {
			return nil, fmt.Errorf("model: decode tree entry %d id: %w", i, err)
		}
		entries = append(entries, TreeEntry{Name: name, Kind: kind, ID: id})
	}
	return &Tree{Entries: entries}, nil
}

// Lookup returns the entry with the given name, if present.
func (t Tree) Lookup(name string) (TreeEntry, bool) {
	i := sort.Search(len(t.Entries), func(i int) bool { return t.Entries[i].Name >= name })
	if i < len(t.Entries) && t.Entries[i].Name == name {
		return t.Entries[i], true
	}
	return TreeEntry{}, false
}
