// This file defines when a settled entry stops being fresh.

package expiration

import "time"

/*
Strategy decides whether a settled result is too old to be served without a refetch.
Explicit invalidation always wins over the strategy: an invalidated entry is stale
no matter what IsStale says.
*/
type Strategy interface {

	// IsStale reports whether a result settled at settledAt is stale at now.
	IsStale(settledAt, now time.Time) bool
}

// Never keeps settled results fresh until they are invalidated.
type Never struct{}

func (Never) IsStale(time.Time, time.Time) bool { return false }

/*
StaleAfter marks a result stale once StaleTime has elapsed since it settled.
A StaleTime of zero makes every settled result stale immediately, so each
EnsureFetched refetches (while still deduplicating concurrent callers).
*/
type StaleAfter struct {
	StaleTime time.Duration
}

func (s StaleAfter) IsStale(settledAt, now time.Time) bool {
	return now.Sub(settledAt) >= s.StaleTime
}

// ForStaleTime maps a configured stale time to a strategy: zero means Never.
func ForStaleTime(d time.Duration) Strategy {
	if d <= 0 {
		return Never{}
	}
	return StaleAfter{StaleTime: d}
}
