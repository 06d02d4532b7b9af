package ctx

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublicAPIEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	now := time.Unix(1700000000, 0)

	r, err := Init(ctx, dir, DefaultConfig())
	require.NoError(t, err)
	defer r.Close()

	_, err = r.StartSession(ctx, "session-1", now)
	require.NoError(t, err)
	_, err = r.ObserveFileWrite(ctx, "notes.md", []byte("investigated the flaky test"))
	require.NoError(t, err)
	_, err = r.FlushActiveSession(ctx, StepFileWrite, now)
	require.NoError(t, err)
	_, err = r.CompactSession(ctx, "investigate flaky test", now)
	require.NoError(t, err)

	pack, err := r.BuildPack(ctx, "", "notes.md", SeedInputs{})
	require.NoError(t, err)
	require.NotEmpty(t, pack.Retrieved)

	result, err := r.GC(ctx, DefaultGCOptions(), now)
	require.NoError(t, err)
	require.Empty(t, result.Swept)
}
