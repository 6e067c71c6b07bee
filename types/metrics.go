package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in the entry lifecycle. The store calls these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when EnsureFetched finds a fresh settled entry or joins a fetch in flight.
	Hit()

	// Miss is called when EnsureFetched finds an empty or stale entry and dispatches a fetch.
	Miss()

	// Fetch is called every time the capability is actually invoked.
	Fetch()

	// Settle is called when a fetch result is applied. ok is false for capability errors.
	Settle(ok bool)

	// Discard is called when a superseded fetch result is dropped.
	Discard()

	// Invalidate is called for every entry marked stale.
	Invalidate()

	// Refresh is called when a refresh timer dispatches a fetch.
	Refresh()

	// Evict is called when an entry is removed by capacity, clean time or Remove.
	Evict()
}

// MetricsProvider hands out a Metrics instance per capability.
type MetricsProvider interface {
	For(capability string) Metrics
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.
It is the default so the store never has to check for a nil Metrics.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()        {}
func (NoopMetrics) Miss()       {}
func (NoopMetrics) Fetch()      {}
func (NoopMetrics) Settle(bool) {}
func (NoopMetrics) Discard()    {}
func (NoopMetrics) Invalidate() {}
func (NoopMetrics) Refresh()    {}
func (NoopMetrics) Evict()      {}

// For implements MetricsProvider.
func (NoopMetrics) For(string) Metrics { return NoopMetrics{} }
