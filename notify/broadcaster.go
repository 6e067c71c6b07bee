// Package notify delivers state transitions to registered listeners.
//
// A Broadcaster splits publishing in two steps. Enqueue is called while the
// publisher still holds its own lock, so the order of the queue is the order
// of the transitions and the recipient list is the set of subscribers at the
// moment of the transition. Flush is called after the publisher released its
// lock and performs the actual calls. Exactly one goroutine drains a
// broadcaster at a time; everybody else just leaves their items in the queue.
// Listeners may therefore call back into the publisher, including triggering
// new transitions, without deadlocking or reordering deliveries.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// Subscriber is one registered listener.
type Subscriber[T any] struct {
	id     string
	fn     func(T)
	active atomic.Bool

	// retired is set by Detach. Queued values are still delivered.
	retired atomic.Bool
}

// ID returns the unique id of the subscriber.
func (s *Subscriber[T]) ID() string { return s.id }

// Active reports whether the subscriber still receives new deliveries. It is
// false once the subscriber was unsubscribed or detached.
func (s *Subscriber[T]) Active() bool { return s.active.Load() && !s.retired.Load() }

type delivery[T any] struct {
	value T
	to    []*Subscriber[T]
}

// Broadcaster fans values out to its subscribers in registration order.
type Broadcaster[T any] struct {
	mu       sync.Mutex
	subs     []*Subscriber[T]
	queue    []delivery[T]
	draining bool

	onPanic func(id string, r any)
}

// NewBroadcaster creates a broadcaster. onPanic, when not nil, is told about
// listeners that panicked; the panic does not stop other deliveries.
func NewBroadcaster[T any](onPanic func(id string, r any)) *Broadcaster[T] {
	return &Broadcaster[T]{onPanic: onPanic}
}

// Subscribe registers fn at the end of the delivery order.
func (b *Broadcaster[T]) Subscribe(fn func(T)) *Subscriber[T] {
	s := &Subscriber[T]{id: uuid.NewString(), fn: fn}
	s.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
	return s
}

// Unsubscribe removes s. Deliveries already queued for s are skipped.
// It reports whether s was still registered.
func (b *Broadcaster[T]) Unsubscribe(s *Subscriber[T]) bool {
	if !s.active.CompareAndSwap(true, false) {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.subs {
		if cur == s {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Detach forgets every subscriber and retires them. Values that are already
// queued still reach them. It returns how many were detached.
func (b *Broadcaster[T]) Detach() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		s.retired.Store(true)
	}
	n := len(b.subs)
	b.subs = nil
	return n
}

// Enqueue records v for every current subscriber. It never calls listeners.
func (b *Broadcaster[T]) Enqueue(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return
	}
	to := make([]*Subscriber[T], len(b.subs))
	copy(to, b.subs)
	b.queue = append(b.queue, delivery[T]{value: v, to: to})
}

// Flush delivers queued values unless another goroutine is already doing it.
// It must not be called while holding a lock the listeners might need.
func (b *Broadcaster[T]) Flush() {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.queue) > 0 {
		d := b.queue[0]
		b.queue[0] = delivery[T]{}
		b.queue = b.queue[1:]
		b.mu.Unlock()

		for _, s := range d.to {
			if s.active.Load() {
				b.deliver(s, d.value)
			}
		}

		b.mu.Lock()
	}
	b.queue = nil
	b.draining = false
	b.mu.Unlock()
}

// Publish is Enqueue followed by Flush.
func (b *Broadcaster[T]) Publish(v T) {
	b.Enqueue(v)
	b.Flush()
}

func (b *Broadcaster[T]) deliver(s *Subscriber[T], v T) {
	defer func() {
		if r := recover(); r != nil && b.onPanic != nil {
			b.onPanic(s.id, r)
		}
	}()
	s.fn(v)
}
