package shard

import "hash/maphash"

/*
This file decides HOW a cache key is assigned to a shard.
If every key went to the same shard, that shard's write lock would become a bottleneck.
*/

/*
Selector is the interface that decides which shard should handle a given key.
The store does not care HOW this decision is made.
*/
type Selector[K comparable] interface {
	Select(key K, n int) int
}

/*
HashSelector spreads keys with maphash.Comparable, so any comparable key type
(ints, strings, structs, arrays) can be sharded without a user supplied hash.
*/
type HashSelector[K comparable] struct {
	seed maphash.Seed
}

func NewHashSelector[K comparable]() *HashSelector[K] {
	return &HashSelector[K]{seed: maphash.MakeSeed()}
}

// Select returns the index of the shard owning key.
func (h *HashSelector[K]) Select(key K, n int) int {
	if n <= 1 {
		return 0
	}
	return int(maphash.Comparable(h.seed, key) % uint64(n))
}
