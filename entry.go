package query

import (
	"strconv"
	"sync"
	"time"

	"github.com/krisalay/query-cache/conc"
	"github.com/krisalay/query-cache/engine"
	"github.com/krisalay/query-cache/notify"
	"github.com/krisalay/query-cache/types"
)

/*
entry is the cached record of one key.

Everything below mu is guarded by mu. mu is only ever held for bookkeeping:
never while the capability runs and never while listeners are called.
*/
type entry[K comparable, V any] struct {
	id  uint64
	key K

	mu sync.Mutex

	state types.State[V]

	// gen is bumped by every dispatch. Only the flight started at the
	// current gen may settle the entry.
	gen uint64

	// staleGen marks invalidation: a settlement whose generation is <= staleGen is stale.
	staleGen uint64

	// interval is the refresh period, zero when refresh is disabled.
	interval     time.Duration
	refreshArmed bool

	// cleanSeq invalidates pending clean timers when bumped.
	cleanSeq uint64

	removed bool

	flights conc.Singleflight[types.State[V]]
	subs    *notify.Broadcaster[types.State[V]]
}

func newEntry[K comparable, V any](id uint64, key K, interval time.Duration, onPanic func(string, any)) *entry[K, V] {
	return &entry[K, V]{
		id:       id,
		key:      key,
		interval: interval,
		subs:     notify.NewBroadcaster[types.State[V]](onPanic),
	}
}

// invalidatedLocked reports whether the current settlement was invalidated.
func (e *entry[K, V]) invalidatedLocked() bool {
	return e.state.Status == types.StatusSettled && e.state.Generation <= e.staleGen
}

func (e *entry[K, V]) staleLocked(eng *engine.CacheEngine, now time.Time) bool {
	return eng.IsStale(e.state.Status, e.state.SettledAt, e.invalidatedLocked(), now)
}

// idle reports whether the entry can be dropped without anybody noticing.
func (e *entry[K, V]) idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.subs.Len() == 0 && e.state.Status != types.StatusLoading
}

func (e *entry[K, V]) infoLocked(eng *engine.CacheEngine, now time.Time) types.EntryInfo[K] {
	return types.EntryInfo[K]{
		Key:             e.key,
		Status:          e.state.Status,
		Generation:      e.gen,
		Subscribers:     e.subs.Len(),
		Stale:           e.state.Status != types.StatusLoading && e.staleLocked(eng, now),
		RefreshInterval: e.interval,
		LastSettledAt:   e.state.SettledAt,
	}
}

func (e *entry[K, V]) info(eng *engine.CacheEngine, now time.Time) types.EntryInfo[K] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.infoLocked(eng, now)
}

func flightKey(gen uint64) string {
	return strconv.FormatUint(gen, 10)
}
