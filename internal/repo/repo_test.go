package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/gc"
	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/retrieval"
	"github.com/agentctx/ctx/internal/staging"
)

func TestInitCreatesLayoutAndEmptyHead(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	head, err := r.Refs.Head()
	require.NoError(t, err)
	require.False(t, head.IsZero())

	v, err := r.Store.GetTyped(ctx, head)
	require.NoError(t, err)
	commit, ok := v.(*model.Commit)
	require.True(t, ok)
	require.Empty(t, commit.Parents)
}

func TestInitRefusesExistingRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	r.Close()

	_, err = Init(ctx, dir, DefaultConfig())
	require.Error(t, err)
}

func TestOpenRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	initialHead, err := r.Refs.Head()
	require.NoError(t, err)
	require.NoError(t, r.Close())

	reopened, err := Open(ctx, dir)
	require.NoError(t, err)
	defer reopened.Close()

	head, err := reopened.Refs.Head()
	require.NoError(t, err)
	require.Equal(t, initialHead, head)
}

// TestSingleObservationRoundTrip exercises spec.md §8 scenario 2: a
// session that writes one file, flushes, and compacts ends up with a
// canonical head whose tree contains that file's content, one parent back
// from the initial commit, and no dangling STAGE pointer.
func TestSingleObservationRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.StartSession(ctx, "t", now)
	require.NoError(t, err)
	_, err = r.ObserveFileWrite(ctx, "a.txt", []byte("hello"))
	require.NoError(t, err)
	_, err = r.FlushActiveSession(ctx, model.StepFileWrite, now)
	require.NoError(t, err)

	newHead, err := r.CompactSession(ctx, "m", now)
	require.NoError(t, err)

	v, err := r.Store.GetTyped(ctx, newHead)
	require.NoError(t, err)
	commit, ok := v.(*model.Commit)
	require.True(t, ok)
	require.Len(t, commit.Parents, 1)

	tv, err := r.Store.GetTyped(ctx, commit.RootTree)
	require.NoError(t, err)
	tree, ok := tv.(*model.Tree)
	require.True(t, ok)
	entry, found := tree.Lookup("a.txt")
	require.True(t, found)

	content, err := r.Store.GetBlob(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))

	_, present, err := r.Refs.Stage()
	require.NoError(t, err)
	require.False(t, present)
}

// TestDedupAcrossSessionsProducesOneBlob exercises spec.md §8 scenario 3:
// two identical writes in two different sessions land on the same blob id.
func TestDedupAcrossSessionsProducesOneBlob(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.StartSession(ctx, "s1", now)
	require.NoError(t, err)
	id1, err := r.ObserveFileWrite(ctx, "x", []byte("abc"))
	require.NoError(t, err)
	_, err = r.FlushActiveSession(ctx, model.StepFileWrite, now)
	require.NoError(t, err)
	_, err = r.CompactSession(ctx, "m1", now)
	require.NoError(t, err)

	_, err = r.StartSession(ctx, "s2", now)
	require.NoError(t, err)
	id2, err := r.ObserveFileWrite(ctx, "x", []byte("abc"))
	require.NoError(t, err)
	_, err = r.FlushActiveSession(ctx, model.StepFileWrite, now)
	require.NoError(t, err)
	_, err = r.CompactSession(ctx, "m2", now)
	require.NoError(t, err)

	require.Equal(t, id1, id2) // identical path and content encode to the same FileVersion blob

	v1, err := r.Store.GetTyped(ctx, r.mustHead(t))
	require.NoError(t, err)
	commit := v1.(*model.Commit)
	tv, err := r.Store.GetTyped(ctx, commit.RootTree)
	require.NoError(t, err)
	tree := tv.(*model.Tree)
	entry, found := tree.Lookup("x")
	require.True(t, found)

	content, err := r.Store.GetBlob(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "abc", string(content))
}

func (r *Repository) mustHead(t *testing.T) model.ObjectID {
	t.Helper()
	head, err := r.Refs.Head()
	require.NoError(t, err)
	return head
}

func TestRecoverSessionKeepsSessionWhenBaseMatchesHead(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.StartSession(ctx, "t", now)
	require.NoError(t, err)
	_, err = r.FlushActiveSession(ctx, model.StepNote, now)
	require.NoError(t, err)

	outcome, err := r.RecoverSession(ctx)
	require.NoError(t, err)
	require.False(t, outcome.Reset) // base still matches canonical head
}

func TestCheckStaleSessionThresholds(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	last := time.Unix(0, 0)
	require.Equal(t, staging.StaleNone, r.CheckStaleSession(last, last.Add(time.Hour)))
	require.Equal(t, staging.StaleShouldAsk, r.CheckStaleSession(last, last.Add(25*time.Hour)))
	require.Equal(t, staging.StaleAutoCompacted, r.CheckStaleSession(last, last.Add(8*24*time.Hour)))
}

func TestConfigLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Retrieval.DefaultBudget = 12345
	require.NoError(t, SaveConfig(dir, cfg))

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	require.Equal(t, 12345, loaded.Retrieval.DefaultBudget)
	require.Equal(t, cfg.Session, loaded.Session)
}

func TestLoadConfigWithNoFileReturnsDefaults(t *testing.T) {
	loaded, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), loaded)
}

func TestRebuildIndexFullAfterCompactionFindsWrittenFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.StartSession(ctx, "t", now)
	require.NoError(t, err)
	_, err = r.ObserveFileWrite(ctx, "a.txt", []byte("hello"))
	require.NoError(t, err)
	_, err = r.FlushActiveSession(ctx, model.StepFileWrite, now)
	require.NoError(t, err)
	_, err = r.CompactSession(ctx, "m", now)
	require.NoError(t, err)

	require.NoError(t, r.RebuildIndex(ctx, index.Full))

	got, ok, err := r.Index.GetPath("a.txt")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.FileNodeID("a.txt"), got)
}

func TestGCAndVerifyThroughRepository(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	result, err := r.GC(ctx, gc.DefaultOptions(), now)
	require.NoError(t, err)
	require.Empty(t, result.Swept)

	verified, err := r.Verify(ctx, gc.VerifyOptions{CheckReachability: true})
	require.NoError(t, err)
	require.Empty(t, verified.Corrupt)
	require.Empty(t, verified.Unreachable)
}

func TestBuildPackFindsCommittedFileByPathQuery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.StartSession(ctx, "t", now)
	require.NoError(t, err)
	_, err = r.ObserveFileWrite(ctx, "a.txt", []byte("hello world"))
	require.NoError(t, err)
	_, err = r.FlushActiveSession(ctx, model.StepFileWrite, now)
	require.NoError(t, err)
	_, err = r.CompactSession(ctx, "m", now)
	require.NoError(t, err)

	pack, err := r.BuildPack(ctx, "", "a.txt", retrieval.SeedInputs{})
	require.NoError(t, err)
	require.NotEmpty(t, pack.Retrieved)
	found := false
	for _, c := range pack.Retrieved {
		if c.Snippet == "hello world" {
			found = true
		}
	}
	require.True(t, found, "expected a.txt's content to be retrieved via the path-query seed")
}

func TestStartSessionGeneratesIDWhenCallerOmitsOne(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	id, err := r.StartSession(ctx, "", now)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	otherID, err := r.StartSession(ctx, "", now)
	require.NoError(t, err)
	require.NotEqual(t, id, otherID)
}

func TestExportImportSessionRoundTripsAcrossRepositories(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	src, err := Init(ctx, t.TempDir(), DefaultConfig())
	require.NoError(t, err)
	defer src.Close()
	_, err = src.StartSession(ctx, "t", now)
	require.NoError(t, err)
	_, err = src.ObserveFileWrite(ctx, "a.txt", []byte("hello"))
	require.NoError(t, err)
	_, err = src.FlushActiveSession(ctx, model.StepFileWrite, now)
	require.NoError(t, err)

	transcript, err := src.ExportSession(ctx)
	require.NoError(t, err)
	require.Contains(t, string(transcript), "session_id: t")

	dst, err := Init(ctx, t.TempDir(), DefaultConfig())
	require.NoError(t, err)
	defer dst.Close()
	require.NoError(t, dst.ImportSession(ctx, transcript))

	newHead, err := dst.CompactSession(ctx, "imported", now)
	require.NoError(t, err)
	v, err := dst.Store.GetTyped(ctx, newHead)
	require.NoError(t, err)
	commit := v.(*model.Commit)
	tv, err := dst.Store.GetTyped(ctx, commit.RootTree)
	require.NoError(t, err)
	tree := tv.(*model.Tree)
	entry, found := tree.Lookup("a.txt")
	require.True(t, found)
	content, err := dst.Store.GetBlob(ctx, entry.ID)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}
