package memory

import (
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
)

// Workspace is a live editor connection kept by the repository. Stop is
// called exactly when the entry leaves the cache, whether it expired or was
// deleted.
type Workspace interface {
	Stop()
}

// WorkspaceRepository keeps open workspaces alive while they are used.
// Every Get extends the idle deadline.
type WorkspaceRepository struct {
	cache *cache.Cache
}

func NewWorkspaceRepository(idleTTL time.Duration) *WorkspaceRepository {
	cleanup := idleTTL / 2
	if cleanup < time.Second {
		cleanup = time.Second
	}
	c := cache.New(idleTTL, cleanup)
	c.OnEvicted(func(_ string, v interface{}) {
		if w, ok := v.(Workspace); ok {
			w.Stop()
		}
	})
	return &WorkspaceRepository{
		cache: c,
	}
}

// Add stores w unless id is taken; it reports whether w was stored.
func (r *WorkspaceRepository) Add(id string, w Workspace) bool {
	return r.cache.Add(id, w, cache.DefaultExpiration) == nil
}

func (r *WorkspaceRepository) Get(id string) (Workspace, bool) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	// Replace never triggers eviction.
	_ = r.cache.Replace(id, x, cache.DefaultExpiration)
	return x.(Workspace), true
}

// Delete removes and stops the workspace.
func (r *WorkspaceRepository) Delete(id string) {
	r.cache.Delete(id)
}

func (r *WorkspaceRepository) IDs() []string {
	items := r.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear stops every workspace.
func (r *WorkspaceRepository) Clear() {
	for _, id := range r.IDs() {
		r.cache.Delete(id)
	}
}
