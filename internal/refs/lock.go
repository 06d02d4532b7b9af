package refs

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agentctx/ctx/internal/ctxerr"
)

// lockRetryMaxElapsed bounds how long AcquireExclusive/AcquireShared retry
// before giving up, mirroring the server-mode retry budget in
// internal/storage/dolt/store.go's newServerRetryBackoff.
const lockRetryMaxElapsed = 10 * time.Second

func newLockRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = lockRetryMaxElapsed
	return bo
}

// Lock is the single exclusive-for-writers, shared-for-readers advisory
// lock guarding every mutating operation against the repository (spec.md
// §5). It wraps the LOCK file with a platform flock (unix) / LockFileEx
// (windows) implementation, falling back to a no-op on wasm.
type Lock struct {
	f         *os.File
	exclusive bool
}

// AcquireExclusive blocks (with bounded retry) until it holds the
// exclusive lock, or returns LockConflict once lockRetryMaxElapsed has
// passed.
func AcquireExclusive(ctx context.Context, s *Store) (*Lock, error) {
	return acquire(ctx, s, true)
}

// AcquireShared acquires a shared (reader) lock, allowing any number of
// concurrent readers but excluding writers.
func AcquireShared(ctx context.Context, s *Store) (*Lock, error) {
	return acquire(ctx, s, false)
}

func acquire(ctx context.Context, s *Store, exclusive bool) (*Lock, error) {
	path := s.LockPath()
	if err := ensureLockFile(path); err != nil {
		return nil, fmt.Errorf("refs: ensure lock file: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("refs: open lock file: %w", err)
	}

	try := flockShared
	if exclusive {
		try = flockExclusive
	}

	bo := newLockRetryBackoff()
	lockErr := backoff.Retry(func() error {
		err := try(f)
		if err != nil {
			return err // retryable: another process holds a conflicting lock
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if lockErr != nil {
		f.Close()
		return nil, ctxerr.New(ctxerr.KindLockConflict, "acquire_lock", path, lockErr)
	}
	return &Lock{f: f, exclusive: exclusive}, nil
}

// Release unlocks and closes the underlying file handle.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := flockUnlock(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return fmt.Errorf("refs: unlock: %w", unlockErr)
	}
	return closeErr
}

func ensureLockFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
