// Package blockchain owns the chain tip: the in-memory cache of the head,
// the block assembler that commits block and state atomically, the chain
// foundation that bootstraps genesis, and the production scheduler.
package blockchain

import (
	"sync"

	"github.com/Hushnetwork-social/hush-server-node-sub008/core/types"
)

// CacheUpdate is one atomic transition of the chain-tip cache. The
// assembler computes it under the commit lock and applies it as a unit.
type CacheUpdate struct {
	Index    types.BlockIndex
	Previous types.BlockID
	Current  types.BlockID
	Next     types.BlockID
	Present  bool
}

// Cache is the process-wide projection of the chain tip. It has a single
// writer (the assembler, under the commit lock) and many readers.
type Cache struct {
	mu      sync.RWMutex
	current CacheUpdate
}

// NewCache returns an empty cache: no chain state present, empty index.
func NewCache() *Cache {
	return &Cache{current: CacheUpdate{Index: types.EmptyBlockIndex}}
}

// Snapshot returns the current tip as a transition value.
func (c *Cache) Snapshot() CacheUpdate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Apply installs a transition. Readers observe transitions in the order the
// writer performed them.
func (c *Cache) Apply(u CacheUpdate) {
	c.mu.Lock()
	c.current = u
	c.mu.Unlock()
}

// LastBlockIndex returns the tip index.
func (c *Cache) LastBlockIndex() types.BlockIndex {
	return c.Snapshot().Index
}

// CurrentBlockID returns the tip block id.
func (c *Cache) CurrentBlockID() types.BlockID {
	return c.Snapshot().Current
}

// PreviousBlockID returns the id of the block before the tip.
func (c *Cache) PreviousBlockID() types.BlockID {
	return c.Snapshot().Previous
}

// NextBlockID returns the pre-minted id of the next block.
func (c *Cache) NextBlockID() types.BlockID {
	return c.Snapshot().Next
}

// StatePresent reports whether a chain state has been committed or loaded.
func (c *Cache) StatePresent() bool {
	return c.Snapshot().Present
}
