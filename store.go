package query

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/krisalay/query-cache/api"
	"github.com/krisalay/query-cache/engine"
	"github.com/krisalay/query-cache/eviction"
	"github.com/krisalay/query-cache/expiration"
	"github.com/krisalay/query-cache/refresh"
	"github.com/krisalay/query-cache/shard"
	"github.com/krisalay/query-cache/types"
)

var _ api.Cache[int, string] = (*Store[int, string])(nil)

// storeIDs separates the timers of stores sharing one scheduler.
var storeIDs atomic.Uint64

/*
Store is the query cache of one capability type.
This struct is the orchestrator that connects:
- shards (the entry table)
- the engine (staleness, refresh, clean time, metrics, logging)
- per-entry flights (deduplicated fetches)
- per-entry broadcasters (subscriber notifications)

Lock order is always shard → entry → broadcaster.
*/
type Store[K comparable, V any] struct {
	id   uint64
	name string
	cap  types.Capability[K, V]

	shards   []*shard.Shard[K, *entry[K, V]]
	selector shard.Selector[K]

	engine *engine.CacheEngine
	logger *zap.Logger

	// ctx is handed to the capability and canceled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	nextEntryID   atomic.Uint64
	fetches       atomic.Int64
	closed        atomic.Bool
	ownsScheduler bool
}

// Listener receives the state transitions of one entry.
// It must not block: deliveries for the same entry wait for it.
type Listener[V any] func(types.State[V])

// NewStore creates a store for capability c.
func NewStore[K comparable, V any](c types.Capability[K, V], opts ...Option) (*Store[K, V], error) {
	if c == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil capability")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}

	name := o.name
	if name == "" {
		name = types.CapabilityName(c)
	}

	metrics := o.metrics
	if metrics == nil && o.provider != nil {
		metrics = o.provider.For(name)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("capability", name))

	scheduler := o.scheduler
	owns := scheduler == nil
	if owns {
		scheduler = refresh.NewScheduler()
	}

	s := &Store[K, V]{
		id:            storeIDs.Inc(),
		name:          name,
		cap:           c,
		selector:      shard.NewHashSelector[K](),
		logger:        logger,
		ownsScheduler: owns,
		engine: engine.NewCacheEngine(
			expiration.ForStaleTime(o.staleTime),
			o.refreshInterval,
			o.cleanTime,
			scheduler,
			metrics,
			logger,
		),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	perShard := o.perShardCapacity()
	s.shards = make([]*shard.Shard[K, *entry[K, V]], o.shards)
	for i := range s.shards {
		var policy eviction.Policy[K]
		if perShard > 0 {
			// validated above
			policy, _ = eviction.New[K](o.policy)
		}
		s.shards[i] = shard.NewShard[K, *entry[K, V]](perShard, policy)
	}

	return s, nil
}

// Name returns the capability label of the store.
func (s *Store[K, V]) Name() string { return s.name }

/*
GetOrCreate returns the description of the entry for key, creating an Empty
entry when there is none. It never fetches.
*/
func (s *Store[K, V]) GetOrCreate(key K) types.EntryInfo[K] {
	for {
		e := s.getOrCreate(key)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		info := e.infoLocked(s.engine, time.Now())
		e.mu.Unlock()
		return info
	}
}

// Peek returns the current snapshot of key without creating or fetching it.
func (s *Store[K, V]) Peek(key K) (types.State[V], bool) {
	e, ok := s.shardFor(key).Store.Get(key)
	if !ok {
		return types.State[V]{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

/*
EnsureFetched makes sure a value for key is, or is being, fetched.

  - Empty or stale: dispatches exactly one fetch
  - Loading: joins the fetch in flight
  - Settled and fresh: returns a Fetch that is already complete
*/
func (s *Store[K, V]) EnsureFetched(key K) (*Fetch[K, V], error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	for {
		e := s.getOrCreate(key)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		f := s.ensureLocked(e)
		e.mu.Unlock()

		e.subs.Flush()
		return f, nil
	}
}

/*
Get retrieves the value for key, fetching it if needed.
The capability's error is returned verbatim.
*/
func (s *Store[K, V]) Get(ctx context.Context, key K) (V, error) {
	var zero V
	f, err := s.EnsureFetched(key)
	if err != nil {
		return zero, err
	}
	st, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	return st.Value, st.Err
}

// Refetch invalidates key, dispatches a new fetch whether or not anybody is
// subscribed, and waits for the result.
func (s *Store[K, V]) Refetch(ctx context.Context, key K) (types.State[V], error) {
	if s.closed.Load() {
		return types.State[V]{}, ErrClosed
	}
	for {
		e := s.getOrCreate(key)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.staleGen = e.gen
		s.engine.Metrics.Invalidate()
		f := s.dispatchLocked(e, "refetch")
		e.mu.Unlock()

		e.subs.Flush()
		return f.Wait(ctx)
	}
}

/*
InvalidateExact marks key stale.

- With subscribers: a new fetch is dispatched right away, superseding any in-flight one
- Without subscribers: the entry is only marked, the next EnsureFetched refetches

Returns false when the key has no entry.
*/
func (s *Store[K, V]) InvalidateExact(key K) bool {
	e, ok := s.shardFor(key).Store.Get(key)
	if !ok {
		return false
	}
	_, ok = s.invalidate(e)
	return ok
}

// InvalidateMatching applies InvalidateExact to every key accepted by pred.
func (s *Store[K, V]) InvalidateMatching(pred func(K) bool) int {
	n := 0
	for _, e := range s.matching(pred) {
		if _, ok := s.invalidate(e); ok {
			n++
		}
	}
	return n
}

// InvalidateAll invalidates every entry.
func (s *Store[K, V]) InvalidateAll() int {
	return s.InvalidateMatching(func(K) bool { return true })
}

// InvalidateCapability invalidates the keys the capability matches against
// target, or every key when the capability does not implement types.Matcher.
func (s *Store[K, V]) InvalidateCapability(target K) int {
	if m, ok := s.cap.(types.Matcher[K]); ok {
		return s.InvalidateMatching(func(key K) bool { return m.Matches(key, target) })
	}
	return s.InvalidateAll()
}

/*
InvalidateMatchingWait invalidates like InvalidateMatching and then waits for
every fetch it dispatched. Capability errors are not returned: they are
settled state. Only ctx errors and store errors are.
*/
func (s *Store[K, V]) InvalidateMatchingWait(ctx context.Context, pred func(K) bool) error {
	var fetches []*Fetch[K, V]
	for _, e := range s.matching(pred) {
		if f, _ := s.invalidate(e); f != nil {
			fetches = append(fetches, f)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fetches {
		g.Go(func() error {
			_, err := f.Wait(gctx)
			if errors.Is(err, ErrRemoved) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

/*
Subscribe registers fn for the transitions of key and returns the state at
registration time. Subscribing does not fetch: call EnsureFetched for that.
A missing key gets an Empty entry.
*/
func (s *Store[K, V]) Subscribe(key K, fn Listener[V]) (*Subscription[K, V], types.State[V]) {
	for {
		e := s.getOrCreate(key)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		sub := e.subs.Subscribe(fn)
		st := e.state
		s.cancelCleanLocked(e)
		if e.interval > 0 && !e.refreshArmed && e.state.Status == types.StatusSettled {
			s.armRefreshLocked(e)
		}
		e.mu.Unlock()

		s.logger.Debug("subscribed",
			zap.Any("key", key),
			zap.String("subscription", sub.ID()),
			zap.Stringer("state", st))
		return &Subscription[K, V]{store: s, entry: e, sub: sub}, st
	}
}

// Unsubscribe removes sub. It is a no-op when sub is already removed.
func (s *Store[K, V]) Unsubscribe(sub *Subscription[K, V]) {
	if sub == nil {
		return
	}
	sub.Unsubscribe()
}

// SetRefreshInterval makes key refresh every d while it has subscribers.
// When several intervals are requested for the same key the shortest one is
// kept until DisableRefresh.
func (s *Store[K, V]) SetRefreshInterval(key K, d time.Duration) error {
	if d <= 0 {
		return errors.Wrapf(ErrInvalidInterval, "got %s", d)
	}
	for {
		e := s.getOrCreate(key)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		if e.interval > 0 && e.interval <= d {
			e.mu.Unlock()
			return nil
		}
		e.interval = d
		if e.subs.Len() > 0 && e.state.Status == types.StatusSettled {
			s.armRefreshLocked(e)
		}
		e.mu.Unlock()
		return nil
	}
}

// DisableRefresh stops periodic refresh for key.
func (s *Store[K, V]) DisableRefresh(key K) {
	e, ok := s.shardFor(key).Store.Get(key)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interval = 0
	s.stopRefreshLocked(e)
}

/*
Remove deletes the entry for key.

- In-flight results for it are discarded
- Its timers are stopped
- Its subscribers receive an Empty snapshot and are detached
*/
func (s *Store[K, V]) Remove(key K) bool {
	sh := s.shardFor(key)

	sh.Mu.Lock()
	e, ok := sh.Store.Get(key)
	if !ok {
		sh.Mu.Unlock()
		return false
	}
	s.unlinkLocked(sh, key)
	e.mu.Lock()
	s.retireLocked(e)
	e.mu.Unlock()
	sh.Mu.Unlock()

	e.subs.Flush()
	s.engine.Metrics.Evict()
	s.logger.Debug("entry removed", zap.Any("key", key))
	return true
}

// Entries describes every entry of the store.
func (s *Store[K, V]) Entries() []types.EntryInfo[K] {
	now := time.Now()
	return lo.Map(s.snapshot(), func(e *entry[K, V], _ int) types.EntryInfo[K] {
		return e.info(s.engine, now)
	})
}

// Len returns the number of entries.
func (s *Store[K, V]) Len() int {
	n := int64(0)
	for _, sh := range s.shards {
		n += sh.Store.Size()
	}
	return int(n)
}

// Fetches returns how many times the capability was invoked.
func (s *Store[K, V]) Fetches() int64 {
	return s.fetches.Load()
}

/*
Close stops the store's timers and cancels the context of in-flight fetches.
Entries stay readable; EnsureFetched, Get and Refetch return ErrClosed.
Close is safe to call multiple times.
*/
func (s *Store[K, V]) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	if s.ownsScheduler {
		s.engine.Scheduler.Close()
	} else {
		s.engine.Scheduler.StopOwner(s.id)
	}
	s.logger.Debug("store closed", zap.Int("entries", s.Len()), zap.Int64("fetches", s.Fetches()))
}

func (s *Store[K, V]) shardFor(key K) *shard.Shard[K, *entry[K, V]] {
	return s.shards[s.selector.Select(key, len(s.shards))]
}

// getOrCreate returns the entry for key, creating it under the shard lock.
func (s *Store[K, V]) getOrCreate(key K) *entry[K, V] {
	sh := s.shardFor(key)

	// fast path: lock-free read of the shard snapshot
	if e, ok := sh.Store.Get(key); ok {
		sh.Touch(key)
		return e
	}

	sh.Mu.Lock()
	if e, ok := sh.Store.Get(key); ok {
		if sh.Eviction != nil {
			sh.Eviction.OnGet(key)
		}
		sh.Mu.Unlock()
		return e
	}

	var evicted *entry[K, V]
	if sh.Full() {
		evicted = s.evictLocked(sh)
	}

	e := newEntry[K, V](s.nextEntryID.Inc(), key, s.engine.RefreshInterval, s.onListenerPanic)
	sh.Store.Put(key, e)
	if sh.Eviction != nil {
		sh.Eviction.OnPut(key)
	}
	e.mu.Lock()
	s.armCleanLocked(e)
	e.mu.Unlock()
	sh.Mu.Unlock()

	if evicted != nil {
		evicted.subs.Flush()
		s.engine.Metrics.Evict()
		s.logger.Debug("entry evicted", zap.Any("key", evicted.key))
	}
	return e
}

// evictLocked drops one idle entry of a full shard. Callers hold sh.Mu.
func (s *Store[K, V]) evictLocked(sh *shard.Shard[K, *entry[K, V]]) *entry[K, V] {
	key, ok := sh.Eviction.Evict(func(k K) bool {
		e, ok := sh.Store.Get(k)
		return ok && e.idle()
	})
	if !ok {
		s.logger.Debug("shard over capacity, every entry is in use", zap.Int64("size", sh.Store.Size()))
		return nil
	}
	e, ok := sh.Store.Get(key)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// a subscriber or a fetch may have arrived since the eligibility check
	if e.subs.Len() > 0 || e.state.Status == types.StatusLoading {
		sh.Eviction.OnPut(key)
		return nil
	}
	s.unlinkLocked(sh, key)
	s.retireLocked(e)
	return e
}

// unlinkLocked removes key from the shard table. Callers hold sh.Mu.
func (s *Store[K, V]) unlinkLocked(sh *shard.Shard[K, *entry[K, V]], key K) {
	sh.Store.Delete(key)
	if sh.Eviction != nil {
		sh.Eviction.Remove(key)
	}
}

func (s *Store[K, V]) snapshot() []*entry[K, V] {
	var out []*entry[K, V]
	for _, sh := range s.shards {
		sh.Store.Range(func(_ K, e *entry[K, V]) bool {
			out = append(out, e)
			return true
		})
	}
	return out
}

func (s *Store[K, V]) matching(pred func(K) bool) []*entry[K, V] {
	return lo.Filter(s.snapshot(), func(e *entry[K, V], _ int) bool {
		return pred(e.key)
	})
}

// invalidate marks e stale and refetches it when observed. ok is false when
// e was removed concurrently.
func (s *Store[K, V]) invalidate(e *entry[K, V]) (f *Fetch[K, V], ok bool) {
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return nil, false
	}
	e.staleGen = e.gen
	s.engine.Metrics.Invalidate()
	if e.subs.Len() > 0 && !s.closed.Load() {
		f = s.dispatchLocked(e, "invalidate")
	}
	e.mu.Unlock()

	e.subs.Flush()
	return f, true
}

func (s *Store[K, V]) onListenerPanic(id string, r any) {
	s.logger.Warn("listener panicked", zap.String("subscription", id), zap.Any("panic", r))
}
