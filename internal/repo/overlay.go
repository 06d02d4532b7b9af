package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
)

// pathChange is one compacted FileVersion rebased onto its tree path,
// split into path segments for recursive descent.
type pathChange struct {
	segments []string
	fv       *model.FileVersion
}

// overlayFileVersions layers compacted FileVersions over the prior
// canonical tree (spec.md §4.5 compaction: "emits a canonical Commit"
// whose root tree reflects every file the staging chain touched). Each
// FileVersion's Path places it at the right entry; missing intermediate
// directories are created, existing ones are read and recursed into.
func overlayFileVersions(ctx context.Context, store *objstore.Store, base model.Tree, fileVersions map[model.NodeID]*model.FileVersion) (*model.Tree, error) {
	changes := make([]pathChange, 0, len(fileVersions))
	for _, fv := range fileVersions {
		if fv.Path == "" {
			return nil, fmt.Errorf("repo: file version %s has no path to overlay", fv.FileID)
		}
		changes = append(changes, pathChange{segments: strings.Split(fv.Path, "/"), fv: fv})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].fv.Path < changes[j].fv.Path })

	tree, err := overlayTree(ctx, store, base, changes)
	if err != nil {
		return nil, err
	}
	return &tree, nil
}

func overlayTree(ctx context.Context, store *objstore.Store, base model.Tree, changes []pathChange) (model.Tree, error) {
	groups := map[string][]pathChange{}
	var names []string
	for _, c := range changes {
		head := c.segments[0]
		if _, ok := groups[head]; !ok {
			names = append(names, head)
		}
		groups[head] = append(groups[head], c)
	}
	sort.Strings(names)

	entries := append([]model.TreeEntry(nil), base.Entries...)
	indexOf := make(map[string]int, len(entries))
	for i, e := range entries {
		indexOf[e.Name] = i
	}

	for _, head := range names {
		group := groups[head]
		leaf := len(group) == 1 && len(group[0].segments) == 1
		for _, c := range group {
			if (len(c.segments) == 1) != leaf {
				return model.Tree{}, fmt.Errorf("repo: path %q conflicts with another entry at %q", c.fv.Path, head)
			}
		}

		var newEntry model.TreeEntry
		if leaf {
			fv := group[0].fv
			newEntry = model.TreeEntry{Name: head, Kind: model.KindBlob, ID: fv.BlobID}
		} else {
			baseSub, err := loadSubtree(ctx, store, entries, indexOf, head)
			if err != nil {
				return model.Tree{}, err
			}
			childChanges := make([]pathChange, 0, len(group))
			for _, c := range group {
				childChanges = append(childChanges, pathChange{segments: c.segments[1:], fv: c.fv})
			}
			subTree, err := overlayTree(ctx, store, baseSub, childChanges)
			if err != nil {
				return model.Tree{}, err
			}
			subID, err := store.PutTyped(ctx, subTree)
			if err != nil {
				return model.Tree{}, fmt.Errorf("repo: store overlay subtree %q: %w", head, err)
			}
			newEntry = model.TreeEntry{Name: head, Kind: model.KindTyped, ID: subID}
		}

		if idx, ok := indexOf[head]; ok {
			entries[idx] = newEntry
		} else {
			indexOf[head] = len(entries)
			entries = append(entries, newEntry)
		}
	}

	return model.NewTree(entries), nil
}

func loadSubtree(ctx context.Context, store *objstore.Store, entries []model.TreeEntry, indexOf map[string]int, name string) (model.Tree, error) {
	idx, ok := indexOf[name]
	if !ok || entries[idx].Kind != model.KindTyped {
		return model.NewTree(nil), nil
	}
	v, err := store.GetTyped(ctx, entries[idx].ID)
	if err != nil {
		return model.Tree{}, fmt.Errorf("repo: load subtree %q: %w", name, err)
	}
	sub, ok := v.(*model.Tree)
	if !ok {
		return model.Tree{}, fmt.Errorf("repo: entry %q is not a Tree", name)
	}
	return *sub, nil
}
