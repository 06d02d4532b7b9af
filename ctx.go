// Package ctx provides the public API for embedding the memory store in a
// host process: an agent harness, a CLI driver, or a language server.
//
// Most embedders only need Init/Open to get a *Repository and then call its
// methods directly; this package exists so a caller can depend on
// "github.com/agentctx/ctx" without reaching into internal/repo's package
// path, which Go's internal/ visibility rule would block from outside this
// module anyway.
package ctx

import (
	"github.com/agentctx/ctx/internal/gc"
	"github.com/agentctx/ctx/internal/index"
	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/repo"
	"github.com/agentctx/ctx/internal/retrieval"
	"github.com/agentctx/ctx/internal/staging"
)

// Repository is an opened repository handle (spec.md §4.8).
type Repository = repo.Repository

// Config is the recognized <repo>/.ctx/config.toml schema (spec.md §6.4).
type Config = repo.Config

// Init creates a new repository at path.
var Init = repo.Init

// Open opens an existing repository at path.
var Open = repo.Open

// DefaultConfig returns the configuration Init uses when the caller has no
// opinion of its own.
var DefaultConfig = repo.DefaultConfig

// LoadConfig and SaveConfig read/write <path>/.ctx/config.toml directly,
// for callers that want to inspect or edit configuration without opening
// the full repository.
var (
	LoadConfig = repo.LoadConfig
	SaveConfig = repo.SaveConfig
)

// Retrieval types surfaced so a caller building a PromptPack doesn't need
// to import internal/retrieval's package path directly.
type (
	PromptPack  = retrieval.PromptPack
	SeedInputs  = retrieval.SeedInputs
)

// Session lifecycle and maintenance option/result types, re-exported for
// the same reason.
type (
	StaleStatus       = staging.StaleStatus
	RecoveryOutcome   = staging.RecoveryOutcome
	IndexMode         = index.Mode
	GCOptions         = gc.Options
	GCResult          = gc.Result
	VerifyOptions     = gc.VerifyOptions
	VerifyResult      = gc.VerifyResult
)

const (
	IndexFull        = index.Full
	IndexIncremental = index.Incremental
	IndexSccOnly     = index.SccOnly
	IndexFullTextOnly = index.FullTextOnly
)

// DefaultGCOptions mirrors the 7-day grace period spec.md §4.9 names.
var DefaultGCOptions = gc.DefaultOptions

// StepKind discriminates a flushed work-commit's payload (spec.md §3).
type StepKind = model.StepKind

const (
	StepFileWrite  = model.StepFileWrite
	StepFileRead   = model.StepFileRead
	StepCommand    = model.StepCommand
	StepNote       = model.StepNote
	StepPlan       = model.StepPlan
	StepRelations  = model.StepRelations
	StepEmptyFlush = model.StepEmptyFlush
)
