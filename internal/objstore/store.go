// Package objstore implements the content-addressed, write-once object
// store (SPEC_FULL.md §4.1): canonical envelope, BLAKE3 hashing, optional
// zstd compression, and crash-safe atomic writes into a sharded directory
// layout.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/telemetry"
)

const (
	compressionTagNone byte = 0
	compressionTagZstd byte = 1
)

// Store is a content-addressed object store rooted at a directory
// (normally <repo>/.ctx/objects).
type Store struct {
	root       string
	shardBytes int
	comp       *compressor
}

// Options configures a Store.
type Options struct {
	// ShardPrefixBytes is storage.shard_prefix_bytes (default 1).
	ShardPrefixBytes int
	// CompressionLevel is storage.compression_level (default
	// CompressionDefault; CompressionNone disables compression).
	CompressionLevel CompressionLevel
}

func DefaultOptions() Options {
	return Options{ShardPrefixBytes: 1, CompressionLevel: CompressionDefault}
}

// Open returns a Store rooted at root, creating the directory if needed.
func Open(root string, opts Options) (*Store, error) {
	if opts.ShardPrefixBytes <= 0 {
		opts.ShardPrefixBytes = 1
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("objstore: create root %s: %w", root, err)
	}
	comp, err := newCompressor(opts.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("objstore: init compressor: %w", err)
	}
	return &Store{root: root, shardBytes: opts.ShardPrefixBytes, comp: comp}, nil
}

func (s *Store) pathFor(id model.ObjectID) string {
	hex := id.String()
	n := s.shardBytes * 2
	if n > len(hex) {
		n = len(hex)
	}
	return filepath.Join(s.root, hex[:n], hex)
}

// Exists reports whether an object with id is present.
func (s *Store) Exists(id model.ObjectID) bool {
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

// PutBlob stores raw bytes and returns their content id.
func (s *Store) PutBlob(ctx context.Context, data []byte) (model.ObjectID, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.objstore.put_blob")
	defer span.End()
	return s.put(model.KindBlob, data)
}

// PutTyped stores a typed entity (Tree, Commit, WorkCommit, EdgeBatch,
// SccView) and returns its content id.
func (s *Store) PutTyped(ctx context.Context, v model.Encoder) (model.ObjectID, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.objstore.put_typed")
	defer span.End()
	return s.put(model.KindTyped, model.EncodeTyped(v))
}

func (s *Store) put(kind model.Kind, payload []byte) (model.ObjectID, error) {
	envelope := encodeEnvelope(kind, payload)
	id := computeID(envelope)

	path := s.pathFor(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil // dedup: identical (kind, payload) already on disk
	}

	stored, err := s.comp.compress(envelope)
	if err != nil {
		return id, fmt.Errorf("objstore: compress: %w", err)
	}
	tag := compressionTagZstd
	if s.comp == nil {
		tag = compressionTagNone
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return id, fmt.Errorf("objstore: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return id, fmt.Errorf("objstore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write([]byte{tag}); err != nil {
		return id, fmt.Errorf("objstore: write tag: %w", err)
	}
	if _, err := tmp.Write(stored); err != nil {
		return id, fmt.Errorf("objstore: write payload: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return id, fmt.Errorf("objstore: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return id, fmt.Errorf("objstore: close temp file: %w", err)
	}
	cleanup = false

	if err := os.Rename(tmpPath, path); err != nil {
		return id, fmt.Errorf("objstore: rename into place: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return id, fmt.Errorf("objstore: fsync dir: %w", err)
	}
	return id, nil
}

// GetBlob reads and verifies a blob object.
func (s *Store) GetBlob(ctx context.Context, id model.ObjectID) ([]byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.objstore.get_blob")
	defer span.End()
	kind, payload, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if kind != model.KindBlob {
		return nil, ctxerr.New(ctxerr.KindInvalidEnvelope, "get_blob", id.String(), fmt.Errorf("object is Typed, not Blob"))
	}
	return payload, nil
}

// GetTyped reads, verifies, and decodes a typed object, returning the
// concrete *model.Tree / *model.Commit / etc. via the TypedKind tag.
func (s *Store) GetTyped(ctx context.Context, id model.ObjectID) (any, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.objstore.get_typed")
	defer span.End()
	kind, payload, err := s.get(id)
	if err != nil {
		return nil, err
	}
	if kind != model.KindTyped {
		return nil, ctxerr.New(ctxerr.KindInvalidEnvelope, "get_typed", id.String(), fmt.Errorf("object is Blob, not Typed"))
	}
	v, err := model.DecodeTyped(payload)
	if err != nil {
		return nil, ctxerr.New(ctxerr.KindDeserializationFailed, "get_typed", id.String(), err)
	}
	return v, nil
}

// GetRaw reads an object's kind and undecoded payload without asserting
// which one it must be, for callers (export_session) that move objects
// between stores opaquely.
func (s *Store) GetRaw(ctx context.Context, id model.ObjectID) (model.Kind, []byte, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.objstore.get_raw")
	defer span.End()
	return s.get(id)
}

// PutRaw stores a payload already known to be of kind, returning its
// content id. import_session uses this to replay objects produced by a
// different store without re-deriving whether each one was a blob or a
// typed entity.
func (s *Store) PutRaw(ctx context.Context, kind model.Kind, payload []byte) (model.ObjectID, error) {
	ctx, span := telemetry.StartSpan(ctx, "ctx.objstore.put_raw")
	defer span.End()
	return s.put(kind, payload)
}

func (s *Store) get(id model.ObjectID) (model.Kind, []byte, error) {
	path := s.pathFor(id)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, ctxerr.New(ctxerr.KindObjectNotFound, "get", id.String(), err)
		}
		return 0, nil, fmt.Errorf("objstore: read %s: %w", path, err)
	}
	if len(raw) == 0 {
		return 0, nil, ctxerr.New(ctxerr.KindInvalidEnvelope, "get", id.String(), fmt.Errorf("empty object file"))
	}
	tag, stored := raw[0], raw[1:]
	var envelope []byte
	switch tag {
	case compressionTagNone:
		envelope = stored
	case compressionTagZstd:
		envelope, err = s.comp.decompress(stored)
		if err != nil {
			// a decompress failure always means file corruption, not a
			// well-formed object with a mismatching hash, so use the same
			// kind as a parse failure (InvalidEnvelope) rather than
			// HashMismatch.
			return 0, nil, ctxerr.New(ctxerr.KindInvalidEnvelope, "get", id.String(), err)
		}
	default:
		return 0, nil, ctxerr.New(ctxerr.KindInvalidEnvelope, "get", id.String(), fmt.Errorf("unknown compression tag %d", tag))
	}

	actual := computeID(envelope)
	if !bytes.Equal(actual[:], id[:]) {
		return 0, nil, ctxerr.New(ctxerr.KindHashMismatch, "get", id.String(), fmt.Errorf("recomputed id %s", actual))
	}

	kind, payload, err := decodeEnvelope(envelope)
	if err != nil {
		return 0, nil, ctxerr.New(ctxerr.KindInvalidEnvelope, "get", id.String(), err)
	}
	return kind, payload, nil
}

// IterIDs walks every object file in shard-then-lexicographic order, giving
// verify and gc a deterministic enumeration.
func (s *Store) IterIDs(ctx context.Context) ([]model.ObjectID, error) {
	var ids []model.ObjectID
	shards, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("objstore: read root: %w", err)
	}
	shardNames := make([]string, 0, len(shards))
	for _, sh := range shards {
		if sh.IsDir() {
			shardNames = append(shardNames, sh.Name())
		}
	}
	sort.Strings(shardNames)
	for _, shard := range shardNames {
		entries, err := os.ReadDir(filepath.Join(s.root, shard))
		if err != nil {
			return nil, fmt.Errorf("objstore: read shard %s: %w", shard, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			id, err := model.ParseObjectID(name)
			if err != nil {
				continue // not an object file (e.g. a stray .tmp- left from a crash)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ObjectPath exposes the on-disk path for an id, for verify/gc.
func (s *Store) ObjectPath(id model.ObjectID) string { return s.pathFor(id) }

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Delete removes an unreachable object file. Used only by gc after a mark
// phase has established the id is not reachable from any ref.
func (s *Store) Delete(id model.ObjectID) error {
	if err := os.Remove(s.pathFor(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objstore: delete %s: %w", id, err)
	}
	return nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
