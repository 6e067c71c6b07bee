package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/krisalay/query-cache/expiration"
	"github.com/krisalay/query-cache/refresh"
	"github.com/krisalay/query-cache/types"
)

/*
CacheEngine is the "brain" of a store.
It is responsible for the behavior of the cache, NOT storage.

It decides:
- When a settled entry is stale
- Whether and how often subscribed entries are refreshed
- How long idle entries are kept
- Where metrics and logs go

It does NOT:
- Store entries
- Handle sharding or locking
- Run fetches
*/
type CacheEngine struct {

	// Expiration decides when a settled result stops being fresh.
	Expiration expiration.Strategy

	// RefreshInterval is the default period of background refetches for
	// entries with subscribers. Zero disables periodic refresh.
	RefreshInterval time.Duration

	// CleanTime is how long an entry without subscribers is kept.
	// Zero keeps entries for the lifetime of the store.
	CleanTime time.Duration

	// Scheduler owns the refresh and clean timers.
	Scheduler *refresh.Scheduler

	// Metrics records what the store is doing.
	Metrics types.Metrics

	// Logger is never nil.
	Logger *zap.Logger
}

/*
NewCacheEngine creates a CacheEngine, filling every nil collaborator with a
no-op default so the store never checks for nil.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	refreshInterval time.Duration,
	cleanTime time.Duration,
	scheduler *refresh.Scheduler,
	metrics types.Metrics,
	logger *zap.Logger,
) *CacheEngine {
	if exp == nil {
		exp = expiration.Never{}
	}
	if scheduler == nil {
		scheduler = refresh.NewScheduler()
	}
	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CacheEngine{
		Expiration:      exp,
		RefreshInterval: refreshInterval,
		CleanTime:       cleanTime,
		Scheduler:       scheduler,
		Metrics:         metrics,
		Logger:          logger,
	}
}

/*
IsStale decides whether a snapshot must be refetched.

- Empty entries are always stale
- Loading entries are never stale: the in-flight fetch is joined instead
- Settled entries are stale when invalidated or when the Expiration strategy says so
*/
func (e *CacheEngine) IsStale(status types.Status, settledAt time.Time, invalidated bool, now time.Time) bool {
	switch status {
	case types.StatusEmpty:
		return true
	case types.StatusLoading:
		return false
	default:
		return invalidated || e.Expiration.IsStale(settledAt, now)
	}
}

// Cleans reports whether idle entries are removed after CleanTime.
func (e *CacheEngine) Cleans() bool {
	return e.CleanTime > 0
}
