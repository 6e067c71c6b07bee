package shard

import (
	"sync"

	"github.com/krisalay/query-cache/eviction"
)

/*
A shard is a small, independent piece of the entry table. Each shard:
- Holds some portion of the entries
- Has its own eviction bookkeeping (when a capacity is configured)
- Has its own lock for writes

The shard lock only guards the table itself (create, delete, eviction order).
Entry state lives behind each entry's own lock, so a shard is never locked
while a fetch runs or a listener is called.
*/
type Shard[K comparable, E any] struct {

	// Store holds key → entry. Reads are lock-free.
	Store Store[K, E]

	// Eviction is nil when the table is unbounded.
	Eviction eviction.Policy[K]

	// Capacity is the maximum number of entries in this shard, <= 0 means unbounded.
	Capacity int

	// Mu serializes writes to Store and every call into Eviction.
	Mu sync.Mutex
}

func NewShard[K comparable, E any](capacity int, ev eviction.Policy[K]) *Shard[K, E] {
	return &Shard[K, E]{
		Store:    NewCOWStore[K, E](),
		Eviction: ev,
		Capacity: capacity,
	}
}

// Full reports whether inserting one more entry would exceed the capacity.
// Callers must hold Mu.
func (s *Shard[K, E]) Full() bool {
	return s.Capacity > 0 && s.Store.Size() >= int64(s.Capacity)
}

// Touch records an access for the eviction policy, if any.
func (s *Shard[K, E]) Touch(key K) {
	if s.Eviction == nil {
		return
	}
	s.Mu.Lock()
	s.Eviction.OnGet(key)
	s.Mu.Unlock()
}
