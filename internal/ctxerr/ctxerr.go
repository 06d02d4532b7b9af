// Package ctxerr defines the error taxonomy shared across the store,
// refs, staging, graph, index, and retrieval layers.
//
// Every error kind is a sentinel; wrapping with fmt.Errorf("%w", ...) would
// lose the kind once a caller crosses a layer boundary, so errors here
// carry the kind explicitly and survive errors.Is/errors.As through any
// number of wraps.
package ctxerr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of failure, independent of the Go type that
// carries it. Callers branch on Kind, not on the concrete error value.
type Kind string

const (
	KindObjectNotFound        Kind = "object_not_found"
	KindHashMismatch          Kind = "hash_mismatch"
	KindInvalidEnvelope       Kind = "invalid_envelope"
	KindDeserializationFailed Kind = "deserialization_failed"
	KindRefNotFound           Kind = "ref_not_found"
	KindLockConflict          Kind = "lock_conflict"
	KindIndexCorrupt          Kind = "index_corrupt"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindNoActiveSession       Kind = "no_active_session"
	KindStagingConflict       Kind = "staging_conflict"
	KindBudgetExceeded        Kind = "budget_exceeded"
	KindCommitOrphan          Kind = "commit_orphan"
)

// Error is the concrete error type returned across package boundaries.
// Op names the attempted operation, ID names the affected object/ref/session
// when meaningful, and Err (if set) is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.ID != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Kind, e.ID, e.Err)
	case e.ID != "":
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Kind, e.ID)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ctxerr.Kind(...)) style matching work by kind:
// two *Error values match if their Kind matches, regardless of Op/ID/Err.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New constructs an *Error for the given kind.
func New(kind Kind, op string, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// Sentinel returns a bare *Error usable as a comparison target for
// errors.Is, e.g. errors.Is(err, ctxerr.Sentinel(ctxerr.KindObjectNotFound)).
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Recovery suggests a remediation for a given kind, used by user-visible
// surfaces that report (operation, kind, affected id, suggested recovery).
func Recovery(kind Kind) string {
	switch kind {
	case KindHashMismatch, KindInvalidEnvelope, KindDeserializationFailed:
		return "run verify, then restore or re-derive the affected object"
	case KindIndexCorrupt:
		return "run rebuild_index(Full)"
	case KindLockConflict:
		return "retry with backoff; another writer holds the lock"
	case KindStagingConflict:
		return "inspect STAGE and refs/ for a stale pointer, then abort_session or recover_session"
	case KindInvalidStateTransition, KindNoActiveSession:
		return "call active_session() to inspect current state before retrying"
	case KindBudgetExceeded:
		return "split the step into smaller observations or raise the configured budget"
	case KindCommitOrphan:
		return "the object store is missing a parent commit; restore from backup"
	case KindObjectNotFound, KindRefNotFound:
		return "treat as absence; not yet observed or not yet created"
	default:
		return ""
	}
}
