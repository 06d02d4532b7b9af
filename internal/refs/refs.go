// Package refs manages the named pointer files under <repo>/.ctx: HEAD,
// STAGE, refs/<name>, and the advisory LOCK file (spec.md §4.2, §6.1).
// Every ref is a lowercase 64-hex object id followed by a newline; updates
// are atomic (temp file, fsync, rename, fsync parent dir), grounded on the
// same pattern objstore.Store uses for object writes and on
// internal/deletions's load-then-atomically-rewrite manifest style.
package refs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
)

const (
	headName = "HEAD"
	lockName = "LOCK"
	stageName = "STAGE"
)

// Store reads and writes ref files rooted at <repo>/.ctx.
type Store struct {
	root string
}

// Open returns a Store rooted at root (the .ctx directory). It does not
// create the directory; repo.Init is responsible for the initial layout.
func Open(root string) *Store {
	return &Store{root: root}
}

func (s *Store) headPath() string  { return filepath.Join(s.root, headName) }
func (s *Store) stagePath() string { return filepath.Join(s.root, stageName) }
func (s *Store) lockPath() string  { return filepath.Join(s.root, lockName) }
func (s *Store) namedPath(name string) string {
	return filepath.Join(s.root, "refs", name)
}

// LockPath exposes the LOCK file path for the Lock type in lock.go.
func (s *Store) LockPath() string { return s.lockPath() }

// Head returns the canonical head commit id.
func (s *Store) Head() (model.ObjectID, error) {
	return s.read(s.headPath(), "HEAD")
}

// SetHead atomically updates the canonical head.
func (s *Store) SetHead(id model.ObjectID) error {
	return s.write(s.headPath(), id)
}

// Stage returns the staging head and whether STAGE is present.
func (s *Store) Stage() (id model.ObjectID, present bool, err error) {
	if _, statErr := os.Stat(s.stagePath()); statErr != nil {
		if os.IsNotExist(statErr) {
			return model.ObjectID{}, false, nil
		}
		return model.ObjectID{}, false, fmt.Errorf("refs: stat STAGE: %w", statErr)
	}
	id, err = s.read(s.stagePath(), "STAGE")
	if err != nil {
		return model.ObjectID{}, false, err
	}
	return id, true, nil
}

// SetStage atomically sets the staging pointer.
func (s *Store) SetStage(id model.ObjectID) error {
	return s.write(s.stagePath(), id)
}

// DeleteStage removes STAGE (end of session, after compaction).
func (s *Store) DeleteStage() error {
	if err := os.Remove(s.stagePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("refs: delete STAGE: %w", err)
	}
	return nil
}

// Named returns the id stored under refs/<name> (e.g. a per-stream work
// head).
func (s *Store) Named(name string) (model.ObjectID, error) {
	return s.read(s.namedPath(name), "refs/"+name)
}

// SetNamed atomically updates refs/<name>, creating the refs directory if
// needed.
func (s *Store) SetNamed(name string, id model.ObjectID) error {
	if err := os.MkdirAll(filepath.Join(s.root, "refs"), 0o755); err != nil {
		return fmt.Errorf("refs: mkdir refs: %w", err)
	}
	return s.write(s.namedPath(name), id)
}

// DeleteNamed removes refs/<name>.
func (s *Store) DeleteNamed(name string) error {
	if err := os.Remove(s.namedPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("refs: delete refs/%s: %w", name, err)
	}
	return nil
}

func (s *Store) read(path, label string) (model.ObjectID, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.ObjectID{}, ctxerr.New(ctxerr.KindRefNotFound, "read_ref", label, err)
		}
		return model.ObjectID{}, fmt.Errorf("refs: read %s: %w", label, err)
	}
	id, err := model.ParseObjectID(strings.TrimSpace(string(raw)))
	if err != nil {
		return model.ObjectID{}, ctxerr.New(ctxerr.KindRefNotFound, "read_ref", label, fmt.Errorf("malformed ref content: %w", err))
	}
	return id, nil
}

func (s *Store) write(path string, id model.ObjectID) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("refs: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("refs: create temp ref: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.WriteString(id.String() + "\n"); err != nil {
		return fmt.Errorf("refs: write temp ref: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("refs: fsync temp ref: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("refs: close temp ref: %w", err)
	}
	cleanup = false

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("refs: rename ref into place: %w", err)
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("refs: reopen dir for fsync: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("refs: fsync dir: %w", err)
	}
	return nil
}
