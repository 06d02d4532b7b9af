// Package index is the rebuildable, embedded key-value index over the
// object store (spec.md §4.6), backed by go.etcd.io/bbolt the way
// pkg/storage/boltdb.go in the cuemby-warren reference backs its own
// node/service/container buckets with one bbolt database and one bucket
// per logical table.
package index

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
)

var (
	bucketPath              = []byte("path")
	bucketName              = []byte("name")
	bucketStableKey         = []byte("stable_key")
	bucketSnapshotPointers  = []byte("snapshot_pointers")
	bucketAdjacency         = []byte("adjacency")
	bucketEdgeBatchOfCommit = []byte("edge_batch_of_commit")
	bucketMeta              = []byte("meta")
)

var allBuckets = [][]byte{
	bucketPath, bucketName, bucketStableKey, bucketSnapshotPointers,
	bucketAdjacency, bucketEdgeBatchOfCommit, bucketMeta,
}

// SnapshotPointers is the value type of the SnapshotPointers table: the
// per-commit derived-object ids an index consumer needs without re-walking
// history, including the map from each stable File node id present in this
// commit's tree to the blob id holding its content at this snapshot (node
// identity is path-derived and survives rewrites; this map is how it
// reaches content, per spec.md §9 "Stable identity across content changes").
type SnapshotPointers struct {
	SccViewID model.ObjectID
	FileBlobs map[string]model.ObjectID
}

// Index wraps a single bbolt database file holding every logical table.
type Index struct {
	db   *bolt.DB
	path string
}

// Open opens (creating if absent) the index database at dir/ctx.index.
func Open(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "ctx.index")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, ctxerr.New(ctxerr.KindIndexCorrupt, "open_index", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, ctxerr.New(ctxerr.KindIndexCorrupt, "open_index", path, err)
	}
	return &Index{db: db, path: path}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error { return ix.db.Close() }

// Path returns the on-disk file backing the index.
func (ix *Index) Path() string { return ix.path }

// Dir returns the directory containing the index file, for RemoveAll
// during a full rebuild (spec.md §4.6 "delete index directory").
func Dir(path string) string { return filepath.Dir(path) }

// --- Path table: normalized path -> FileId (NodeID) ---

func (ix *Index) PutPath(normalized string, file model.NodeID) error {
	return ix.put(bucketPath, []byte(normalized), encodeNodeIDJSON(file))
}

func (ix *Index) GetPath(normalized string) (model.NodeID, bool, error) {
	return ix.getNodeID(bucketPath, []byte(normalized))
}

// --- Name table: (namespace, name) -> ordered list of ObjectId ---

func nameKey(namespace, name string) []byte { return []byte(namespace + "\x00" + name) }

func (ix *Index) PutName(namespace, name string, ids []model.ObjectID) error {
	return ix.put(bucketName, nameKey(namespace, name), encodeIDListJSON(ids))
}

func (ix *Index) GetName(namespace, name string) ([]model.ObjectID, error) {
	return ix.getIDList(bucketName, nameKey(namespace, name))
}

// --- StableKey table: fully-qualified stable key -> ItemId (NodeID) ---

func (ix *Index) PutStableKey(key string, item model.NodeID) error {
	return ix.put(bucketStableKey, []byte(key), encodeNodeIDJSON(item))
}

func (ix *Index) GetStableKey(key string) (model.NodeID, bool, error) {
	return ix.getNodeID(bucketStableKey, []byte(key))
}

// --- SnapshotPointers table: CommitId -> pointers struct ---

func (ix *Index) PutSnapshotPointers(commit model.ObjectID, ptrs SnapshotPointers) error {
	b, err := json.Marshal(ptrs)
	if err != nil {
		return fmt.Errorf("index: marshal snapshot pointers: %w", err)
	}
	return ix.put(bucketSnapshotPointers, commit[:], b)
}

// mergeSnapshotPointers reads the existing pointers for commit (if any),
// applies mutate, and writes the result back, so indexCommit's FileBlobs
// and rebuildScc's SccViewID can both land on the same record regardless
// of which runs first.
func (ix *Index) mergeSnapshotPointers(commit model.ObjectID, mutate func(*SnapshotPointers)) error {
	ptrs, _, err := ix.GetSnapshotPointers(commit)
	if err != nil {
		return err
	}
	mutate(&ptrs)
	return ix.PutSnapshotPointers(commit, ptrs)
}

func (ix *Index) GetSnapshotPointers(commit model.ObjectID) (SnapshotPointers, bool, error) {
	var ptrs SnapshotPointers
	raw, ok, err := ix.get(bucketSnapshotPointers, commit[:])
	if err != nil || !ok {
		return ptrs, ok, err
	}
	if err := json.Unmarshal(raw, &ptrs); err != nil {
		return ptrs, false, ctxerr.New(ctxerr.KindIndexCorrupt, "get_snapshot_pointers", commit.String(), err)
	}
	return ptrs, true, nil
}

// ResolveFileBlob looks up the blob id holding file's content at commit's
// snapshot, per the SnapshotPointers table's FileBlobs map.
func (ix *Index) ResolveFileBlob(commit model.ObjectID, file model.NodeID) (model.ObjectID, bool, error) {
	ptrs, ok, err := ix.GetSnapshotPointers(commit)
	if err != nil || !ok {
		return model.ObjectID{}, ok, err
	}
	id, ok := ptrs.FileBlobs[file.String()]
	return id, ok, nil
}

// --- Adjacency table: (direction, NodeId, Label) -> ordered list of NodeId ---

func adjacencyKey(dir uint8, node model.NodeID, label uint8) []byte {
	buf := make([]byte, 0, 1+8+1)
	buf = append(buf, dir)
	var kindBuf [4]byte
	binary.BigEndian.PutUint32(kindBuf[:], uint32(node.Kind))
	buf = append(buf, kindBuf[:]...)
	buf = append(buf, node.ID[:]...)
	buf = append(buf, label)
	return buf
}

func (ix *Index) PutAdjacency(dir uint8, node model.NodeID, label uint8, targets []model.NodeID) error {
	return ix.put(bucketAdjacency, adjacencyKey(dir, node, label), encodeNodeListJSON(targets))
}

func (ix *Index) GetAdjacency(dir uint8, node model.NodeID, label uint8) ([]model.NodeID, error) {
	raw, ok, err := ix.get(bucketAdjacency, adjacencyKey(dir, node, label))
	if err != nil || !ok {
		return nil, err
	}
	return decodeNodeListJSON(raw)
}

// --- EdgeBatchOfCommit table: EdgeBatchId -> CommitId ---

func (ix *Index) PutEdgeBatchOfCommit(batch, commit model.ObjectID) error {
	return ix.put(bucketEdgeBatchOfCommit, batch[:], commit[:])
}

func (ix *Index) GetEdgeBatchOfCommit(batch model.ObjectID) (model.ObjectID, bool, error) {
	raw, ok, err := ix.get(bucketEdgeBatchOfCommit, batch[:])
	if err != nil || !ok {
		return model.ObjectID{}, ok, err
	}
	var commit model.ObjectID
	copy(commit[:], raw)
	return commit, true, nil
}

// --- Meta: rebuild bookkeeping ---

// LastIndexedHead records which canonical head this index reflects, so
// Incremental rebuilds know where to resume.
func (ix *Index) LastIndexedHead() (model.ObjectID, bool, error) {
	raw, ok, err := ix.get(bucketMeta, []byte("last_indexed_head"))
	if err != nil || !ok {
		return model.ObjectID{}, ok, err
	}
	var id model.ObjectID
	copy(id[:], raw)
	return id, true, nil
}

func (ix *Index) SetLastIndexedHead(id model.ObjectID) error {
	return ix.put(bucketMeta, []byte("last_indexed_head"), id[:])
}

// --- low-level helpers ---

func (ix *Index) put(bucket, key, value []byte) error {
	err := ix.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, value)
	})
	if err != nil {
		return ctxerr.New(ctxerr.KindIndexCorrupt, "index_put", string(bucket), err)
	}
	return nil
}

func (ix *Index) get(bucket, key []byte) ([]byte, bool, error) {
	var out []byte
	err := ix.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucket).Get(key)
		if v == nil {
			return nil
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, ctxerr.New(ctxerr.KindIndexCorrupt, "index_get", string(bucket), err)
	}
	return out, out != nil, nil
}

func (ix *Index) getNodeID(bucket, key []byte) (model.NodeID, bool, error) {
	raw, ok, err := ix.get(bucket, key)
	if err != nil || !ok {
		return model.NodeID{}, ok, err
	}
	var n model.NodeID
	if jsonErr := json.Unmarshal(raw, &n); jsonErr != nil {
		return n, false, ctxerr.New(ctxerr.KindIndexCorrupt, "decode_node_id", string(key), jsonErr)
	}
	return n, true, nil
}

func (ix *Index) getIDList(bucket, key []byte) ([]model.ObjectID, error) {
	raw, ok, err := ix.get(bucket, key)
	if err != nil || !ok {
		return nil, err
	}
	var hexes []string
	if jsonErr := json.Unmarshal(raw, &hexes); jsonErr != nil {
		return nil, ctxerr.New(ctxerr.KindIndexCorrupt, "decode_id_list", string(key), jsonErr)
	}
	ids := make([]model.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := model.ParseObjectID(h)
		if err != nil {
			return nil, ctxerr.New(ctxerr.KindIndexCorrupt, "decode_id_list", string(key), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func encodeNodeIDJSON(n model.NodeID) []byte {
	b, _ := json.Marshal(n)
	return b
}

func encodeIDListJSON(ids []model.ObjectID) []byte {
	hexes := make([]string, len(ids))
	for i, id := range ids {
		hexes[i] = id.String()
	}
	b, _ := json.Marshal(hexes)
	return b
}

func encodeNodeListJSON(nodes []model.NodeID) []byte {
	b, _ := json.Marshal(nodes)
	return b
}

func decodeNodeListJSON(raw []byte) ([]model.NodeID, error) {
	var nodes []model.NodeID
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, ctxerr.New(ctxerr.KindIndexCorrupt, "decode_node_list", "", err)
	}
	return nodes, nil
}
