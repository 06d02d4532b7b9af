package objstore

import "github.com/agentctx/ctx/internal/ctxerr"

// IsNotFound reports whether err is an ObjectNotFound error from this
// package (spec.md §7).
func IsNotFound(err error) bool { return ctxerr.Is(err, ctxerr.KindObjectNotFound) }

// IsHashMismatch reports whether err is a HashMismatch error from this
// package.
func IsHashMismatch(err error) bool { return ctxerr.Is(err, ctxerr.KindHashMismatch) }

// IsInvalidEnvelope reports whether err is an InvalidEnvelope error from
// this package.
func IsInvalidEnvelope(err error) bool { return ctxerr.Is(err, ctxerr.KindInvalidEnvelope) }
