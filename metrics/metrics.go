package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/krisalay/query-cache/types"
)

const capabilityLabel = "capability"

// Collector holds the Prometheus vectors shared by every capability of a client.
type Collector struct {
	// Lookups counts EnsureFetched calls by result (hit or miss).
	Lookups *prometheus.CounterVec

	// Fetches counts capability invocations.
	Fetches *prometheus.CounterVec

	// Settlements counts applied fetch results by outcome (ok or err).
	Settlements *prometheus.CounterVec

	// Discards counts superseded fetch results that were dropped.
	Discards *prometheus.CounterVec

	// Invalidations counts entries marked stale.
	Invalidations *prometheus.CounterVec

	// Refreshes counts fetches dispatched by refresh timers.
	Refreshes *prometheus.CounterVec

	// Evictions counts removed entries.
	Evictions *prometheus.CounterVec
}

// New registers the query cache metrics on reg under namespace.
// A nil reg registers on prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Collector{
		Lookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total number of EnsureFetched lookups by result",
		}, []string{capabilityLabel, "result"}),
		Fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Total number of capability invocations",
		}, []string{capabilityLabel}),
		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Total number of applied fetch results by outcome",
		}, []string{capabilityLabel, "outcome"}),
		Discards: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discarded_results_total",
			Help:      "Total number of superseded fetch results that were dropped",
		}, []string{capabilityLabel}),
		Invalidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidations_total",
			Help:      "Total number of entries marked stale",
		}, []string{capabilityLabel}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total number of fetches dispatched by refresh timers",
		}, []string{capabilityLabel}),
		Evictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Total number of removed entries",
		}, []string{capabilityLabel}),
	}
}

// For returns the Metrics of one capability. It implements types.MetricsProvider.
func (c *Collector) For(capability string) types.Metrics {
	return &capabilityMetrics{
		hit:        c.Lookups.WithLabelValues(capability, "hit"),
		miss:       c.Lookups.WithLabelValues(capability, "miss"),
		fetch:      c.Fetches.WithLabelValues(capability),
		settleOK:   c.Settlements.WithLabelValues(capability, "ok"),
		settleErr:  c.Settlements.WithLabelValues(capability, "err"),
		discard:    c.Discards.WithLabelValues(capability),
		invalidate: c.Invalidations.WithLabelValues(capability),
		refresh:    c.Refreshes.WithLabelValues(capability),
		evict:      c.Evictions.WithLabelValues(capability),
	}
}

type capabilityMetrics struct {
	hit, miss           prometheus.Counter
	fetch               prometheus.Counter
	settleOK, settleErr prometheus.Counter
	discard             prometheus.Counter
	invalidate          prometheus.Counter
	refresh             prometheus.Counter
	evict               prometheus.Counter
}

func (m *capabilityMetrics) Hit()        { m.hit.Inc() }
func (m *capabilityMetrics) Miss()       { m.miss.Inc() }
func (m *capabilityMetrics) Fetch()      { m.fetch.Inc() }
func (m *capabilityMetrics) Discard()    { m.discard.Inc() }
func (m *capabilityMetrics) Invalidate() { m.invalidate.Inc() }
func (m *capabilityMetrics) Refresh()    { m.refresh.Inc() }
func (m *capabilityMetrics) Evict()      { m.evict.Inc() }

func (m *capabilityMetrics) Settle(ok bool) {
	if ok {
		m.settleOK.Inc()
		return
	}
	m.settleErr.Inc()
}
