package snapshot

import "sync/atomic"

// Cache holds the currently published snapshot. Publishing swaps a single
// pointer so readers never wait for writers and a reader always observes
// either the previous or the new snapshot in full.
//
// The zero value is an empty cache ready for use.
type Cache struct {
	current atomic.Pointer[Snapshot]
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return new(Cache)
}

// Publish installs s as the current snapshot.
func (c *Cache) Publish(s *Snapshot) {
	c.current.Store(s)
}

// Current returns the currently published snapshot or nil if nothing has
// been published yet. The returned snapshot remains valid for as long as
// the caller holds it.
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}
