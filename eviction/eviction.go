package eviction

import "github.com/cockroachdb/errors"

/*
This file defines how the store decides which entry to drop when a capacity
bound is configured. Only idle entries (no subscribers, no fetch in flight)
may be dropped, so the store passes an eligibility check to Evict.
*/

/*
Policy is the interface that all eviction strategies must follow.
Policies are not safe for concurrent use; the owning shard serializes calls.
*/
type Policy[K comparable] interface {

	// OnGet is called whenever an entry is looked up by EnsureFetched or Subscribe.
	// - LRU moves the key to the front
	// - LFU bumps its counter
	// - FIFO ignores it
	OnGet(K)

	// OnPut is called whenever an entry is created.
	OnPut(K)

	// Remove is called when an entry is removed for any other reason.
	Remove(K)

	// Evict picks the least valuable key for which eligible returns true,
	// forgets it and returns it. ok is false when no key qualifies.
	Evict(eligible func(K) bool) (key K, ok bool)
}

// PolicyType is a simple identifier for supported eviction strategies.
type PolicyType string

const (
	// LRU (Least Recently Used): evicts the idle key looked up least recently.
	LRU PolicyType = "LRU"

	// LFU (Least Frequently Used): evicts the idle key looked up the fewest times.
	LFU PolicyType = "LFU"

	// FIFO (First In First Out): evicts the oldest idle key, regardless of access.
	FIFO PolicyType = "FIFO"
)

// ErrUnknownPolicy is returned by Validate and New for unsupported policy types.
var ErrUnknownPolicy = errors.New("unknown eviction policy")

// Validate checks that t names a supported policy.
func (t PolicyType) Validate() error {
	switch t {
	case LRU, LFU, FIFO:
		return nil
	default:
		return errors.Wrapf(ErrUnknownPolicy, "%q", string(t))
	}
}

// New is a small factory function.
// Given a PolicyType, it creates the correct eviction policy.
func New[K comparable](t PolicyType) (Policy[K], error) {
	switch t {
	case LRU:
		return newLRU[K](), nil
	case LFU:
		return newLFU[K](), nil
	case FIFO:
		return newFIFO[K](), nil
	default:
		return nil, t.Validate()
	}
}
