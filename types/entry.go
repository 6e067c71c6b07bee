package types

import "time"

// EntryInfo is a read-only description of one cached entry, used for
// inspection and debugging.
type EntryInfo[K comparable] struct {
	Key             K
	Status          Status
	Generation      uint64
	Subscribers     int
	Stale           bool
	RefreshInterval time.Duration // zero => no periodic refresh
	LastSettledAt   time.Time     // zero => never settled
}
