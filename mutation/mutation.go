// Package mutation runs write operations whose outcome is observable like a
// query entry, typically followed by the invalidation of the queries they
// made stale.
package mutation

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/krisalay/query-cache/notify"
	"github.com/krisalay/query-cache/types"
)

var (
	// ErrClosed is returned by Mutate after Close.
	ErrClosed = errors.New("mutation is closed")

	// ErrCapabilityPanic is the settled error of a mutation whose capability panicked.
	ErrCapabilityPanic = errors.New("mutation capability panicked")
)

// Settler is an optional extension of the mutation capability. OnSettled runs
// after every call of Run, before the result is published.
type Settler[K comparable, V any] interface {
	OnSettled(ctx context.Context, key K, value V, err error)
}

// SettledFunc is the function form of Settler.
type SettledFunc[K comparable, V any] func(ctx context.Context, key K, value V, err error)

/*
Mutation tracks the state of one mutate capability.

Unlike a query, a mutation is never deduplicated: every Mutate call runs the
capability. The published state follows the last dispatched call, results of
older calls are returned to their own caller only.
*/
type Mutation[K comparable, V any] struct {
	cap       types.Capability[K, V]
	onSettled []SettledFunc[K, V]
	logger    *zap.Logger

	mu     sync.Mutex
	state  types.State[V]
	gen    uint64
	closed bool

	subs *notify.Broadcaster[types.State[V]]
}

// Option configures a Mutation.
type Option[K comparable, V any] func(*Mutation[K, V])

// WithOnSettled adds fn to the hooks run after every mutation, after the
// capability's own OnSettled.
func WithOnSettled[K comparable, V any](fn SettledFunc[K, V]) Option[K, V] {
	return func(m *Mutation[K, V]) { m.onSettled = append(m.onSettled, fn) }
}

// WithLogger sets the logger. Defaults to zap.NewNop.
func WithLogger[K comparable, V any](l *zap.Logger) Option[K, V] {
	return func(m *Mutation[K, V]) { m.logger = l }
}

// New creates a Mutation for c.
func New[K comparable, V any](c types.Capability[K, V], opts ...Option[K, V]) (*Mutation[K, V], error) {
	if c == nil {
		return nil, errors.New("nil mutation capability")
	}

	m := &Mutation[K, V]{cap: c, logger: zap.NewNop()}
	if s, ok := c.(Settler[K, V]); ok {
		m.onSettled = append(m.onSettled, s.OnSettled)
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.With(zap.String("mutation", types.CapabilityName(c)))
	m.subs = notify.NewBroadcaster[types.State[V]](func(id string, r any) {
		m.logger.Warn("listener panicked", zap.String("subscription", id), zap.Any("panic", r))
	})
	return m, nil
}

/*
Mutate runs the capability for key and returns its result.

 1. the state moves to Loading, keeping the previous result
 2. the capability runs
 3. the OnSettled hooks run
 4. the state settles, unless another Mutate was dispatched meanwhile
*/
func (m *Mutation[K, V]) Mutate(ctx context.Context, key K) (V, error) {
	var zero V

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return zero, ErrClosed
	}
	m.gen++
	g := m.gen
	if m.state.Status != types.StatusLoading {
		m.state = m.state.Loading(g)
		m.subs.Enqueue(m.state)
	} else {
		m.state.Generation = g
	}
	m.mu.Unlock()
	m.subs.Flush()

	v, err := m.call(ctx, key)
	for _, fn := range m.onSettled {
		fn(ctx, key, v, err)
	}

	m.mu.Lock()
	if m.gen == g && !m.closed {
		m.state = types.Settled(v, err, time.Now(), g)
		m.subs.Enqueue(m.state)
	} else {
		m.logger.Debug("mutation result superseded", zap.Any("key", key), zap.Uint64("generation", g))
	}
	m.mu.Unlock()
	m.subs.Flush()

	return v, err
}

func (m *Mutation[K, V]) call(ctx context.Context, key K) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn("mutation capability panicked", zap.Any("key", key), zap.Any("panic", r))
			err = errors.Wrapf(ErrCapabilityPanic, "%v", r)
		}
	}()
	return m.cap.Run(ctx, key)
}

// State returns the current snapshot.
func (m *Mutation[K, V]) State() types.State[V] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for the transitions of the mutation and returns the
// state at registration time.
func (m *Mutation[K, V]) Subscribe(fn func(types.State[V])) (*notify.Subscriber[types.State[V]], types.State[V]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs.Subscribe(fn), m.state
}

// Unsubscribe removes sub and reports whether it was registered.
func (m *Mutation[K, V]) Unsubscribe(sub *notify.Subscriber[types.State[V]]) bool {
	return m.subs.Unsubscribe(sub)
}

// Close refuses new mutations and detaches every subscriber. Calls already
// running still return their result to their caller.
func (m *Mutation[K, V]) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.subs.Detach()
}
