package cache

import (
	"sync"

	"github.com/andresmejia3/facegate/internal/types"
)

// Cache maps currently visible faces (keyed by their bounding box) to the latest
// verdict a worker published for them. One mutex covers every read, write and
// reconciliation, and it is only held for the duration of a single call.
type Cache struct {
	mu      sync.Mutex
	entries map[types.BoundingBox]types.Verdict
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[types.BoundingBox]types.Verdict)}
}

// Get returns the verdict stored for box, or Pending if there is none.
func (c *Cache) Get(box types.BoundingBox) types.Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[box]
	if !ok {
		return types.Pending
	}
	return v
}

// Upsert stores verdict for box. Whichever concurrent call finishes last wins.
func (c *Cache) Upsert(box types.BoundingBox, verdict types.Verdict) {
	c.mu.Lock()
	c.entries[box] = verdict
	c.mu.Unlock()
}

// Reconcile drops every entry whose box is not in current and returns how many
// were removed. Entries for boxes in current keep their verdict.
func (c *Cache) Reconcile(current []types.BoundingBox) int {
	keep := make(map[types.BoundingBox]struct{}, len(current))
	for _, b := range current {
		keep[b] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for box := range c.entries {
		if _, ok := keep[box]; !ok {
			delete(c.entries, box)
			removed++
		}
	}
	return removed
}

// Snapshot returns a copy of the current entries.
func (c *Cache) Snapshot() map[types.BoundingBox]types.Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[types.BoundingBox]types.Verdict, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Len returns the number of cached faces.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
