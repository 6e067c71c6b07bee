package shard

import (
	"sync/atomic"
)

/*
This file defines how entries are stored inside a shard.
- Lookups happen on every EnsureFetched/Subscribe/Invalidate and must not lock
- Entries are created lazily, once per key, so writes are rare

To achieve this, we use "Copy-On-Write" (COW).
*/

// Store is the interface used by a shard to keep its entries.
type Store[K comparable, E any] interface {

	// Get retrieves an entry by key.
	Get(K) (E, bool)

	// Put inserts or replaces an entry.
	Put(K, E)

	// Delete removes an entry.
	Delete(K)

	// Range calls fn for every entry of the current snapshot until fn returns false.
	Range(fn func(K, E) bool)

	// Size returns how many entries are stored.
	Size() int64
}

/*
cowStore is a Copy-On-Write implementation of Store.
- Readers always see an immutable snapshot
- Writers (serialized by the shard mutex) build a NEW map and swap it in atomically
*/
type cowStore[K comparable, E any] struct {
	data atomic.Pointer[map[K]E]
	size atomic.Int64
}

func NewCOWStore[K comparable, E any]() *cowStore[K, E] {
	s := &cowStore[K, E]{}
	m := make(map[K]E)
	s.data.Store(&m)
	return s
}

func (s *cowStore[K, E]) Get(key K) (E, bool) {
	m := *s.data.Load()
	ent, ok := m[key]
	return ent, ok
}

// Put copies the current map, adds the entry and swaps the copy in.
// Callers must hold the shard mutex.
func (s *cowStore[K, E]) Put(key K, ent E) {
	old := *s.data.Load()

	n := make(map[K]E, len(old)+1)
	for k, v := range old {
		n[k] = v
	}
	n[key] = ent

	s.data.Store(&n)
	s.size.Store(int64(len(n)))
}

// Delete is the copy-on-write counterpart of Put.
func (s *cowStore[K, E]) Delete(key K) {
	old := *s.data.Load()
	if _, ok := old[key]; !ok {
		return
	}

	n := make(map[K]E, len(old))
	for k, v := range old {
		if k != key {
			n[k] = v
		}
	}

	s.data.Store(&n)
	s.size.Store(int64(len(n)))
}

func (s *cowStore[K, E]) Range(fn func(K, E) bool) {
	for k, v := range *s.data.Load() {
		if !fn(k, v) {
			return
		}
	}
}

func (s *cowStore[K, E]) Size() int64 {
	return s.size.Load()
}
