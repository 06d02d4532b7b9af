package repo

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/agentctx/ctx/internal/staging"
)

// ExportSession serializes the active session's staging chain as a YAML
// document (spec.md §6.3 export_session): a portable, human-diffable
// transcript that can be moved between repository clones.
func (r *Repository) ExportSession(ctx context.Context) ([]byte, error) {
	exported, err := r.session.Export(ctx)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(exported)
	if err != nil {
		return nil, fmt.Errorf("repo: marshal exported session: %w", err)
	}
	return out, nil
}

// ImportSession replays a transcript produced by ExportSession against
// this repository (spec.md §6.3 import_session), deduplicating every
// artifact against the local store by content id and resetting the
// staging pointer to the imported head. It refuses to import over an
// already-active session.
func (r *Repository) ImportSession(ctx context.Context, data []byte) error {
	var exported staging.ExportedSession
	if err := yaml.Unmarshal(data, &exported); err != nil {
		return fmt.Errorf("repo: parse exported session: %w", err)
	}
	return r.session.Import(ctx, &exported)
}
