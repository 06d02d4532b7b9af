package objstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir, opts)
	require.NoError(t, err)
	return s
}

func TestPutGetBlobRoundTrip(t *testing.T) {
	for _, level := range []CompressionLevel{CompressionNone, CompressionDefault} {
		s := openTestStore(t, Options{ShardPrefixBytes: 1, CompressionLevel: level})
		ctx := context.Background()
		id, err := s.PutBlob(ctx, []byte("hello world"))
		require.NoError(t, err)
		require.True(t, s.Exists(id))

		got, err := s.GetBlob(ctx, id)
		require.NoError(t, err)
		require.Equal(t, []byte("hello world"), got)
	}
}

func TestPutIsIdempotent(t *testing.T) {
	s := openTestStore(t, DefaultOptions())
	ctx := context.Background()
	id1, err := s.PutBlob(ctx, []byte("same bytes"))
	require.NoError(t, err)
	id2, err := s.PutBlob(ctx, []byte("same bytes"))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestPutTypedRoundTrip(t *testing.T) {
	s := openTestStore(t, DefaultOptions())
	ctx := context.Background()
	tree := model.NewTree([]model.TreeEntry{
		{Name: "a.txt", Kind: model.KindBlob, ID: model.ObjectID{1}},
	})
	id, err := s.PutTyped(ctx, tree)
	require.NoError(t, err)

	v, err := s.GetTyped(ctx, id)
	require.NoError(t, err)
	decoded, ok := v.(*model.Tree)
	require.True(t, ok)
	require.Equal(t, tree, *decoded)
}

func TestGetMissingIsNotFound(t *testing.T) {
	s := openTestStore(t, DefaultOptions())
	_, err := s.GetBlob(context.Background(), model.ObjectID{0xAB})
	require.True(t, ctxerr.Is(err, ctxerr.KindObjectNotFound))
}

func TestGetDetectsHashMismatch(t *testing.T) {
	s := openTestStore(t, Options{ShardPrefixBytes: 1, CompressionLevel: CompressionNone})
	ctx := context.Background()
	id, err := s.PutBlob(ctx, []byte("original"))
	require.NoError(t, err)

	path := s.ObjectPath(id)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF // flip the last payload byte, leaving length+magic valid
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = s.GetBlob(ctx, id)
	require.True(t, ctxerr.Is(err, ctxerr.KindHashMismatch))
}

func TestIterIDsIsSortedAndComplete(t *testing.T) {
	s := openTestStore(t, DefaultOptions())
	ctx := context.Background()
	var ids []model.ObjectID
	for _, b := range []string{"one", "two", "three"} {
		id, err := s.PutBlob(ctx, []byte(b))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	got, err := s.IterIDs(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		require.True(t, got[i-1].String() < got[i].String())
	}
}

func TestGetRawPutRawRoundTrip(t *testing.T) {
	s := openTestStore(t, DefaultOptions())
	ctx := context.Background()
	id, err := s.PutBlob(ctx, []byte("raw content"))
	require.NoError(t, err)

	kind, payload, err := s.GetRaw(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.KindBlob, kind)

	other := openTestStore(t, DefaultOptions())
	replayed, err := other.PutRaw(ctx, kind, payload)
	require.NoError(t, err)
	require.Equal(t, id, replayed)
}

func TestDeleteRemovesObject(t *testing.T) {
	s := openTestStore(t, DefaultOptions())
	ctx := context.Background()
	id, err := s.PutBlob(ctx, []byte("to be gc'd"))
	require.NoError(t, err)
	require.NoError(t, s.Delete(id))
	require.False(t, s.Exists(id))
}
