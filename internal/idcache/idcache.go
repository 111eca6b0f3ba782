// Package idcache provides a sharded cache mapping an observed UID sequence
// to the canonical UID it was snapped to by an approximate search. It exists
// so that a UID requiring an expensive GroupedSequenceStore.Search is only
// searched for once per distinct value, no matter how many reads carry it.
//
// The shard count and the use of a fast non-cryptographic hash to pick a
// shard follow the sharded kmer index in grailbio's fusion package; unlike
// that index, whose scale justifies a hand-rolled linear-probing table, a
// cache of UID strings is small enough that a plain map per shard is the
// right tradeoff.
package idcache

import (
	farm "github.com/dgryski/go-farm"
)

const shardCount = 64

// Cache maps observed UID sequences to the canonical UID they resolve to.
// Cache is not safe for concurrent use without external synchronization.
type Cache struct {
	shards [shardCount]map[string]string
}

// New returns an empty Cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i] = make(map[string]string)
	}
	return c
}

func shardFor(uid string) uint64 {
	return farm.Hash64([]byte(uid)) % shardCount
}

// Get returns the canonical UID previously recorded for uid, if any.
func (c *Cache) Get(uid string) (string, bool) {
	shard := c.shards[shardFor(uid)]
	v, ok := shard[uid]
	return v, ok
}

// Set records that uid resolves to canonical.
func (c *Cache) Set(uid, canonical string) {
	c.shards[shardFor(uid)][uid] = canonical
}

// Len returns the total number of cached entries across all shards.
func (c *Cache) Len() int {
	n := 0
	for _, shard := range c.shards {
		n += len(shard)
	}
	return n
}
