package jit

// Stats reports the block cache's lifetime hit/miss/eviction counts,
// consumed only by the CLI's optional --stats summary (no semantic effect
// on a run).
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// BlockCache maps a guest entry PC to the Trace compiled for it, per spec
// §4.4: a hit requires both presence and a fingerprint match against the
// current instruction word at that PC; a stale entry is evicted and treated
// as a miss.
type BlockCache struct {
	traces map[uint64]*Trace
	stats  Stats
}

// NewBlockCache returns an empty cache.
func NewBlockCache() *BlockCache {
	return &BlockCache{traces: make(map[uint64]*Trace)}
}

// Lookup returns the cached trace at pc if its fingerprint still matches
// currentWord, evicting and reporting a miss otherwise.
func (c *BlockCache) Lookup(pc uint64, currentWord uint32) (*Trace, bool) {
	tr, ok := c.traces[pc]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if tr.Fingerprint != currentWord {
		delete(c.traces, pc)
		c.stats.Evictions++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return tr, true
}

// Has reports whether pc has a fingerprint-matching entry, without
// affecting hit/miss counters — used by the compiler's cache-probe hook
// (spec §4.5: "consult the cache-probe hook... to prevent redundant
// recompilation").
func (c *BlockCache) Has(pc uint64, currentWord uint32) bool {
	tr, ok := c.traces[pc]
	return ok && tr.Fingerprint == currentWord
}

// Insert stores tr under its own entry PC.
func (c *BlockCache) Insert(tr *Trace) {
	c.traces[tr.Entry] = tr
}

// Invalidate evicts the entry at pc, if any — the self-modifying-code path
// of spec §8 scenario 4, and the fingerprint guard's recompilation trigger
// when a within-trace block goes stale.
func (c *BlockCache) Invalidate(pc uint64) {
	if _, ok := c.traces[pc]; ok {
		delete(c.traces, pc)
		c.stats.Evictions++
	}
}

// Size returns the number of live entries.
func (c *BlockCache) Size() int { return len(c.traces) }

// Stats returns a snapshot of the cache's lifetime counters.
func (c *BlockCache) Stats() Stats { return c.stats }
