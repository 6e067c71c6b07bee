package query

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/krisalay/query-cache/refresh"
	"github.com/krisalay/query-cache/types"
)

// This file holds the transitions of an entry: dispatching and settling
// fetches, and the refresh and clean timers. Every *Locked method is called
// with e.mu held and may enqueue notifications; the caller flushes them after
// unlocking.

func (s *Store[K, V]) ensureLocked(e *entry[K, V]) *Fetch[K, V] {
	switch {
	case e.state.Status == types.StatusLoading:
		s.engine.Metrics.Hit()
		return s.attachLocked(e)
	case e.staleLocked(s.engine, time.Now()):
		s.engine.Metrics.Miss()
		return s.dispatchLocked(e, "miss")
	default:
		s.engine.Metrics.Hit()
		return settledFetch(s, e, e.state)
	}
}

// dispatchLocked starts a new generation for e. Any fetch still in flight
// for an older generation will be discarded when it completes.
func (s *Store[K, V]) dispatchLocked(e *entry[K, V], reason string) *Fetch[K, V] {
	wasLoading := e.state.Status == types.StatusLoading

	e.gen++
	e.state = e.state.Loading(e.gen)
	if !wasLoading {
		e.subs.Enqueue(e.state)
	}
	s.stopRefreshLocked(e)

	s.logger.Debug("dispatching fetch",
		zap.Any("key", e.key),
		zap.Uint64("generation", e.gen),
		zap.String("reason", reason),
		zap.Bool("supersedes", wasLoading))
	return s.attachLocked(e)
}

// attachLocked joins the flight of the current generation, starting it if
// nobody did yet.
func (s *Store[K, V]) attachLocked(e *entry[K, V]) *Fetch[K, V] {
	g := e.gen
	ch := e.flights.DoChan(flightKey(g), func() (types.State[V], error) {
		return s.run(e, g)
	})
	return pendingFetch(s, e, g, ch)
}

// run invokes the capability for generation g and settles e with the result,
// unless g was superseded in the meantime.
func (s *Store[K, V]) run(e *entry[K, V], g uint64) (types.State[V], error) {
	s.fetches.Inc()
	s.engine.Metrics.Fetch()

	v, err := s.call(e.key)
	now := time.Now()

	e.mu.Lock()
	if e.removed || e.gen != g {
		current := e.gen
		e.mu.Unlock()

		s.engine.Metrics.Discard()
		s.logger.Debug("discarding superseded result",
			zap.Any("key", e.key),
			zap.Uint64("generation", g),
			zap.Uint64("current", current))
		return types.State[V]{}, errSuperseded
	}

	e.state = types.Settled(v, err, now, g)
	s.engine.Metrics.Settle(err == nil)
	if e.subs.Len() > 0 {
		s.armRefreshLocked(e)
	} else {
		s.armCleanLocked(e)
	}
	e.subs.Enqueue(e.state)
	st := e.state
	e.mu.Unlock()

	e.subs.Flush()
	return st, nil
}

// call runs the capability, turning a panic into a settled error.
func (s *Store[K, V]) call(key K) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("capability panicked",
				zap.Any("key", key),
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = errors.Wrapf(ErrCapabilityPanic, "%v", r)
		}
	}()
	return s.cap.Run(s.ctx, key)
}

// retireLocked turns e into a tombstone. Subscribers get a final Empty
// snapshot and are detached.
func (s *Store[K, V]) retireLocked(e *entry[K, V]) {
	e.removed = true
	// bumping the generation discards whatever is in flight
	e.gen++
	s.stopRefreshLocked(e)
	s.cancelCleanLocked(e)
	if e.state.Status != types.StatusEmpty {
		e.state = types.State[V]{Generation: e.gen}
		e.subs.Enqueue(e.state)
	}
	e.subs.Detach()
}

func (s *Store[K, V]) timerKey(e *entry[K, V], kind refresh.Kind) refresh.Key {
	return refresh.Key{Owner: s.id, Entry: e.id, Kind: kind}
}

// armRefreshLocked schedules the next refresh of e, replacing a pending one.
func (s *Store[K, V]) armRefreshLocked(e *entry[K, V]) {
	if e.interval <= 0 || s.closed.Load() {
		return
	}
	g := e.gen
	e.refreshArmed = s.engine.Scheduler.Reset(s.timerKey(e, refresh.KindRefresh), e.interval, func() {
		s.onRefresh(e, g)
	})
}

func (s *Store[K, V]) stopRefreshLocked(e *entry[K, V]) {
	if !e.refreshArmed {
		return
	}
	e.refreshArmed = false
	s.engine.Scheduler.Stop(s.timerKey(e, refresh.KindRefresh))
}

/*
onRefresh is the refresh timer callback for generation g.

- If e moved on (new generation, removed, store closed) the timer is obsolete
- Without subscribers nothing is fetched and nothing is rescheduled. The entry
  keeps its freshness and the next Subscribe re-arms the timer
- Otherwise a new generation is dispatched
*/
func (s *Store[K, V]) onRefresh(e *entry[K, V], g uint64) {
	e.mu.Lock()
	if e.removed || s.closed.Load() || e.gen != g || e.state.Status != types.StatusSettled {
		e.mu.Unlock()
		return
	}
	e.refreshArmed = false

	if e.subs.Len() == 0 || e.interval <= 0 {
		e.mu.Unlock()
		s.logger.Debug("refresh skipped, entry unobserved", zap.Any("key", e.key))
		return
	}

	s.engine.Metrics.Refresh()
	s.dispatchLocked(e, "refresh")
	e.mu.Unlock()

	e.subs.Flush()
}

// armCleanLocked schedules the removal of e once it stayed unobserved for
// the clean time.
func (s *Store[K, V]) armCleanLocked(e *entry[K, V]) {
	if !s.engine.Cleans() || s.closed.Load() {
		return
	}
	e.cleanSeq++
	seq := e.cleanSeq
	s.engine.Scheduler.Reset(s.timerKey(e, refresh.KindClean), s.engine.CleanTime, func() {
		s.onClean(e, seq)
	})
}

func (s *Store[K, V]) cancelCleanLocked(e *entry[K, V]) {
	if !s.engine.Cleans() {
		return
	}
	e.cleanSeq++
	s.engine.Scheduler.Stop(s.timerKey(e, refresh.KindClean))
}

func (s *Store[K, V]) onClean(e *entry[K, V], seq uint64) {
	if s.closed.Load() {
		return
	}
	sh := s.shardFor(e.key)

	sh.Mu.Lock()
	e.mu.Lock()
	cur, ok := sh.Store.Get(e.key)
	clean := ok && cur == e &&
		!e.removed &&
		e.cleanSeq == seq &&
		e.subs.Len() == 0 &&
		e.state.Status != types.StatusLoading
	if clean {
		s.unlinkLocked(sh, e.key)
		s.retireLocked(e)
	}
	e.mu.Unlock()
	sh.Mu.Unlock()

	if clean {
		s.engine.Metrics.Evict()
		s.logger.Debug("idle entry cleaned", zap.Any("key", e.key), zap.Duration("cleanTime", s.engine.CleanTime))
	}
}
