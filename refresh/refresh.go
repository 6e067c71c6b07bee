// This file owns the background timers of the cache.
// Entries configured with a refresh interval are re-fetched periodically, and
// idle entries are cleaned up after the configured clean time.

package refresh

import (
	"sync"
	"time"
)

// Kind separates the independent timers an entry can own.
type Kind uint8

const (
	// KindRefresh re-fetches an entry that still has subscribers.
	KindRefresh Kind = iota

	// KindClean removes an entry that stayed without subscribers.
	KindClean
)

func (k Kind) String() string {
	switch k {
	case KindRefresh:
		return "refresh"
	case KindClean:
		return "clean"
	default:
		return "unknown"
	}
}

// Key identifies one pending timer. At most one timer exists per Key.
type Key struct {
	Owner uint64 // store id
	Entry uint64 // entry id inside the store
	Kind  Kind
}

/*
Scheduler is the timer table shared by the stores of a client.

The scheduler knows nothing about entries: it only guarantees that
- Reset replaces any pending timer for the same key
- Stop cancels a pending timer
- Close cancels everything and refuses new timers

Callbacks run on their own goroutine (time.AfterFunc). They must re-check the
entry they belong to, because a timer that was already firing cannot be stopped.
*/
type Scheduler struct {
	mu     sync.Mutex
	timers map[Key]*time.Timer
	closed bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{timers: make(map[Key]*time.Timer)}
}

// Reset arms a timer for key that calls fn after d, replacing the pending one.
// It returns false once the scheduler is closed.
func (s *Scheduler) Reset(key Key, d time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if old, ok := s.timers[key]; ok {
		old.Stop()
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		s.mu.Lock()
		// A Reset may have replaced us while we were waiting for the lock.
		if cur, ok := s.timers[key]; ok && cur == t {
			delete(s.timers, key)
		}
		s.mu.Unlock()

		fn()
	})
	s.timers[key] = t
	return true
}

// Stop cancels the pending timer for key. It reports whether one was pending.
func (s *Scheduler) Stop(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[key]
	if !ok {
		return false
	}
	delete(s.timers, key)
	return t.Stop()
}

// StopOwner cancels every timer of one store.
func (s *Scheduler) StopOwner(owner uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, t := range s.timers {
		if k.Owner == owner {
			t.Stop()
			delete(s.timers, k)
		}
	}
}

// Pending returns the number of armed timers.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Close cancels every pending timer. Close is safe to call multiple times.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
}
