package query

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/krisalay/query-cache/config"
	"github.com/krisalay/query-cache/eviction"
	"github.com/krisalay/query-cache/refresh"
	"github.com/krisalay/query-cache/types"
)

const defaultShards = 16

type options struct {
	shards          int
	maxEntries      int
	policy          eviction.PolicyType
	staleTime       time.Duration
	cleanTime       time.Duration
	refreshInterval time.Duration
	refreshSet      bool

	name      string
	logger    *zap.Logger
	metrics   types.Metrics
	provider  types.MetricsProvider
	scheduler *refresh.Scheduler
}

// Option configures a Store or, through NewClient, every store of a Client.
type Option func(*options)

func defaultOptions() options {
	return options{
		shards: defaultShards,
		policy: eviction.LRU,
	}
}

// WithShards sets the number of independent entry tables.
func WithShards(n int) Option {
	return func(o *options) { o.shards = n }
}

// WithMaxEntries bounds the number of entries. When a shard is full, policy
// picks an idle entry (no subscribers, no fetch in flight) to drop. Entries
// that are in use are never dropped, so the bound can be exceeded while every
// entry is observed.
func WithMaxEntries(n int, policy eviction.PolicyType) Option {
	return func(o *options) {
		o.maxEntries = n
		o.policy = policy
	}
}

// WithStaleTime sets how long a settled result is served without refetching.
// Zero, the default, keeps results fresh until they are invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(o *options) { o.staleTime = d }
}

// WithCleanTime removes entries that have had no subscribers for d.
// Zero, the default, keeps entries for the lifetime of the store.
func WithCleanTime(d time.Duration) Option {
	return func(o *options) { o.cleanTime = d }
}

// WithRefreshInterval re-fetches entries with subscribers every d.
// d must be positive.
func WithRefreshInterval(d time.Duration) Option {
	return func(o *options) {
		o.refreshInterval = d
		o.refreshSet = true
	}
}

// WithName overrides the capability label used in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger. Defaults to zap.NewNop.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics sink of a single store.
func WithMetrics(m types.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithMetricsProvider hands every store a Metrics labeled with its capability.
// WithMetrics takes precedence.
func WithMetricsProvider(p types.MetricsProvider) Option {
	return func(o *options) { o.provider = p }
}

// WithConfig applies the cache section of a configuration file.
func WithConfig(c config.Cache) Option {
	return func(o *options) {
		o.shards = c.Shards
		o.maxEntries = c.MaxEntries
		if c.Eviction != "" {
			o.policy = eviction.PolicyType(c.Eviction)
		}
		o.staleTime = c.StaleTime
		o.cleanTime = c.CleanTime
		if c.RefreshInterval != 0 {
			o.refreshInterval = c.RefreshInterval
			o.refreshSet = true
		}
	}
}

func withScheduler(s *refresh.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

func (o *options) validate() error {
	if o.shards <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "shards must be positive, got %d", o.shards)
	}
	if o.maxEntries < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max entries must not be negative, got %d", o.maxEntries)
	}
	if o.maxEntries > 0 {
		if err := o.policy.Validate(); err != nil {
			return errors.Mark(err, ErrInvalidConfig)
		}
	}
	if o.staleTime < 0 {
		return errors.Wrapf(ErrInvalidConfig, "stale time must not be negative, got %s", o.staleTime)
	}
	if o.cleanTime < 0 {
		return errors.Wrapf(ErrInvalidConfig, "clean time must not be negative, got %s", o.cleanTime)
	}
	if o.refreshSet && o.refreshInterval <= 0 {
		return errors.Wrapf(ErrInvalidInterval, "got %s", o.refreshInterval)
	}
	return nil
}

// perShardCapacity spreads maxEntries over the shards, rounding up.
func (o *options) perShardCapacity() int {
	if o.maxEntries <= 0 {
		return 0
	}
	return (o.maxEntries + o.shards - 1) / o.shards
}
