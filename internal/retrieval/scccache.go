package retrieval

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/agentctx/ctx/internal/model"
	"github.com/agentctx/ctx/internal/objstore"
)

// sccCache decodes each commit's SccView object at most once per cache,
// regardless of how many BuildPack calls race to read the same commit's
// snapshot pointers. Concurrent callers asking for the same object id
// collapse onto a single store read via singleflight; the decoded result
// is kept afterward so later callers skip the read entirely.
type sccCache struct {
	group singleflight.Group
	mu    sync.RWMutex
	byID  map[model.ObjectID]*model.SccView
}

func newSccCache() *sccCache {
	return &sccCache{byID: make(map[model.ObjectID]*model.SccView)}
}

func (c *sccCache) get(ctx context.Context, store *objstore.Store, id model.ObjectID) (*model.SccView, error) {
	c.mu.RLock()
	if v, ok := c.byID[id]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.group.Do(id.String(), func() (interface{}, error) {
		v, err := store.GetTyped(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("retrieval: load scc view %s: %w", id, err)
		}
		sv, ok := v.(*model.SccView)
		if !ok {
			return nil, fmt.Errorf("retrieval: object %s is not an SccView", id)
		}
		c.mu.Lock()
		c.byID[id] = sv
		c.mu.Unlock()
		return sv, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.SccView), nil
}
