package query

import (
	"go.uber.org/zap"

	"github.com/krisalay/query-cache/notify"
	"github.com/krisalay/query-cache/types"
)

// Subscription is the caller-owned handle of one listener. The store only
// keeps the listener until Unsubscribe is called or the entry is removed.
type Subscription[K comparable, V any] struct {
	store *Store[K, V]
	entry *entry[K, V]
	sub   *notify.Subscriber[types.State[V]]
}

// ID returns the unique id of the subscription.
func (s *Subscription[K, V]) ID() string { return s.sub.ID() }

// Key returns the subscribed key.
func (s *Subscription[K, V]) Key() K { return s.entry.key }

// Active reports whether the listener still receives transitions.
func (s *Subscription[K, V]) Active() bool { return s.sub.Active() }

/*
Unsubscribe removes the listener. Transitions not yet delivered to it are
dropped. When the last subscriber of an entry leaves, the entry becomes
eligible for cleaning and eviction, and its refresh timer stops rescheduling.

It reports whether the subscription was still active. Calling it again is a no-op.
*/
func (s *Subscription[K, V]) Unsubscribe() bool {
	e := s.entry

	e.mu.Lock()
	if !e.subs.Unsubscribe(s.sub) {
		e.mu.Unlock()
		return false
	}
	if e.subs.Len() == 0 && !e.removed {
		s.store.armCleanLocked(e)
	}
	e.mu.Unlock()

	s.store.logger.Debug("unsubscribed", zap.Any("key", e.key), zap.String("subscription", s.sub.ID()))
	return true
}
