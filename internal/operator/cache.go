package operator

import (
	"sync"

	"github.com/patrickmn/go-cache"
)

// StatusCache holds one DeviceStatus per device with no expiry; staleness
// is bounded by the polling interval only.
//
// Each device also has a write generation. Invalidate bumps it, and
// StoreIfCurrent refuses a reading that was started before the bump, so a
// refresh racing a command write cannot put pre-write state back.
type StatusCache struct {
	items *cache.Cache

	mu  sync.Mutex
	gen map[string]uint64
}

// NewStatusCache creates an empty cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{
		items: cache.New(cache.NoExpiration, 0),
		gen:   make(map[string]uint64),
	}
}

// Lookup returns the cached status for id.
func (c *StatusCache) Lookup(id string) (DeviceStatus, bool) {
	v, ok := c.items.Get(id)
	if !ok {
		return DeviceStatus{}, false
	}
	return v.(DeviceStatus), true
}

// Generation returns the current write generation for id.
func (c *StatusCache) Generation(id string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[id]
}

// Store replaces the entry unconditionally.
func (c *StatusCache) Store(s DeviceStatus) {
	c.items.Set(s.DeviceID, s, cache.NoExpiration)
}

// StoreIfCurrent stores s only if no invalidation happened since gen was
// read. It reports whether the entry was written.
func (c *StatusCache) StoreIfCurrent(s DeviceStatus, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[s.DeviceID] != gen {
		return false
	}
	c.items.Set(s.DeviceID, s, cache.NoExpiration)
	return true
}

// Invalidate removes the entry for id and bumps its generation.
func (c *StatusCache) Invalidate(id string) {
	c.mu.Lock()
	c.gen[id]++
	c.items.Delete(id)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *StatusCache) Len() int {
	return c.items.ItemCount()
}

// Snapshot returns every cached status keyed by device id.
func (c *StatusCache) Snapshot() map[string]DeviceStatus {
	items := c.items.Items()
	out := make(map[string]DeviceStatus, len(items))
	for id, item := range items {
		out[id] = item.Object.(DeviceStatus)
	}
	return out
}
