package query

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/krisalay/query-cache/conc"
	"github.com/krisalay/query-cache/types"
)

/*
Fetch is the handle returned by EnsureFetched.

Waiting on a Fetch follows the entry rather than one particular call to the
capability: when the generation it joined is superseded by an invalidation,
Wait moves on to the newest generation, so the caller always ends up with the
state every subscriber ends up with.

A Fetch belongs to the caller that obtained it and Wait must not be called
concurrently. Once Wait returned a state, later calls return the same state.
*/
type Fetch[K comparable, V any] struct {
	store *Store[K, V]
	entry *entry[K, V]
	gen   uint64
	ch    <-chan conc.SingleflightResult[types.State[V]]

	state types.State[V]
	done  bool
}

func settledFetch[K comparable, V any](s *Store[K, V], e *entry[K, V], st types.State[V]) *Fetch[K, V] {
	return &Fetch[K, V]{store: s, entry: e, gen: st.Generation, state: st, done: true}
}

func pendingFetch[K comparable, V any](
	s *Store[K, V],
	e *entry[K, V],
	gen uint64,
	ch <-chan conc.SingleflightResult[types.State[V]],
) *Fetch[K, V] {
	return &Fetch[K, V]{store: s, entry: e, gen: gen, ch: ch}
}

// Key returns the key being fetched.
func (f *Fetch[K, V]) Key() K { return f.entry.key }

// Generation returns the generation Wait is currently following.
func (f *Fetch[K, V]) Generation() uint64 { return f.gen }

// Done reports whether the result is already known without waiting.
func (f *Fetch[K, V]) Done() bool { return f.done }

/*
Wait blocks until the entry settles and returns the settled state.
The capability's error is part of the state, not the returned error; the
returned error is ctx.Err() or ErrRemoved when the entry was removed first.
*/
func (f *Fetch[K, V]) Wait(ctx context.Context) (types.State[V], error) {
	for !f.done {
		select {
		case <-ctx.Done():
			return types.State[V]{}, ctx.Err()
		case r := <-f.ch:
			if r.Err == nil {
				f.state, f.done = r.Val, true
				continue
			}
			if !errors.Is(r.Err, errSuperseded) {
				return types.State[V]{}, r.Err
			}
			if err := f.follow(); err != nil {
				return types.State[V]{}, err
			}
		}
	}
	return f.state, nil
}

// follow re-attaches to the newest generation of the entry.
func (f *Fetch[K, V]) follow() error {
	e := f.entry

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed {
		return ErrRemoved
	}
	switch e.state.Status {
	case types.StatusSettled:
		f.state, f.done = e.state, true
		f.gen = e.state.Generation
	case types.StatusLoading:
		next := f.store.attachLocked(e)
		f.gen, f.ch = next.gen, next.ch
	default:
		return ErrRemoved
	}
	return nil
}
