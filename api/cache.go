package api

import (
	"context"

	"github.com/krisalay/query-cache/types"
)

/*
Cache defines the PUBLIC API of a query store for one capability type.
Sharding, generations, timers and notification queues are hidden behind it.
*/
type Cache[K comparable, V any] interface {

	/*
		Get returns the value for key, fetching it if needed.

		BEHAVIOR:
		---------
		1. Fresh settled entry: return its value or error immediately
		2. Fetch in flight: wait for it instead of starting another one
		3. Empty or stale entry: dispatch exactly one fetch and wait for it

		The capability's error is returned verbatim.
	*/
	Get(ctx context.Context, key K) (V, error)

	/*
		Peek returns the current snapshot of key without creating or fetching it.
	*/
	Peek(key K) (types.State[V], bool)

	/*
		InvalidateExact marks key stale.

		- With subscribers: a new fetch is dispatched right away, superseding any in-flight one
		- Without subscribers: the next EnsureFetched refetches

		Returns false when the key has no entry.
	*/
	InvalidateExact(key K) bool

	/*
		InvalidateMatching applies InvalidateExact to every key accepted by pred
		and returns how many entries were invalidated.
	*/
	InvalidateMatching(pred func(K) bool) int

	// InvalidateAll invalidates every entry of the store.
	InvalidateAll() int

	/*
		Remove deletes the entry for key.

		- In-flight results for it are discarded
		- Its timers are stopped
		- Its subscribers receive an Empty snapshot and are detached

		This operation is idempotent.
	*/
	Remove(key K) bool

	/*
		Close stops every timer and cancels the context handed to in-flight fetches.
		Close is safe to call multiple times.
	*/
	Close()
}
