package refs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentctx/ctx/internal/ctxerr"
	"github.com/agentctx/ctx/internal/model"
)

func TestHeadRoundTrip(t *testing.T) {
	s := Open(t.TempDir())
	id := model.ObjectID{1, 2, 3}
	require.NoError(t, s.SetHead(id))
	got, err := s.Head()
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestHeadMissingIsRefNotFound(t *testing.T) {
	s := Open(t.TempDir())
	_, err := s.Head()
	require.True(t, ctxerr.Is(err, ctxerr.KindRefNotFound))
}

func TestStageOptional(t *testing.T) {
	s := Open(t.TempDir())
	_, present, err := s.Stage()
	require.NoError(t, err)
	require.False(t, present)

	id := model.ObjectID{9}
	require.NoError(t, s.SetStage(id))
	got, present, err := s.Stage()
	require.NoError(t, err)
	require.True(t, present)
	require.Equal(t, id, got)

	require.NoError(t, s.DeleteStage())
	_, present, err = s.Stage()
	require.NoError(t, err)
	require.False(t, present)
}

func TestNamedRef(t *testing.T) {
	s := Open(t.TempDir())
	id := model.ObjectID{7}
	require.NoError(t, s.SetNamed("stream/a", id))
	got, err := s.Named("stream/a")
	require.NoError(t, err)
	require.Equal(t, id, got)
	require.NoError(t, s.DeleteNamed("stream/a"))
	_, err = s.Named("stream/a")
	require.True(t, ctxerr.Is(err, ctxerr.KindRefNotFound))
}

func TestExclusiveLockExcludesSecondWriter(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)

	lock1, err := AcquireExclusive(context.Background(), s)
	require.NoError(t, err)
	defer lock1.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	_, err = AcquireExclusive(ctx, s)
	require.Error(t, err)
}

func TestSharedLocksCoexist(t *testing.T) {
	dir := t.TempDir()
	s := Open(dir)

	r1, err := AcquireShared(context.Background(), s)
	require.NoError(t, err)
	defer r1.Release()

	r2, err := AcquireShared(context.Background(), s)
	require.NoError(t, err)
	defer r2.Release()
}
