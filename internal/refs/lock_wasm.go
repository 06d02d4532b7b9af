//go:build js && wasm

package refs

import (
	"errors"
	"os"
)

var errLockBusy = errors.New("refs: lock held by another process")

// WASM is effectively single-process, so these are no-ops (mirrors
// internal/lockfile's wasm build).
func flockShared(f *os.File) error    { return nil }
func flockExclusive(f *os.File) error { return nil }
func flockUnlock(f *os.File) error    { return nil }
