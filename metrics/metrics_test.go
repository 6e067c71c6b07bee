package metrics_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	query "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/metrics"
	"github.com/krisalay/query-cache/types"
)

func TestCollectorCountsStoreEvents(t *testing.T) {
	ctx := context.Background()
	collector := metrics.New(prometheus.NewRegistry(), "test")

	store, err := query.NewStore[int, int](
		types.CapabilityFunc[int, int](func(_ context.Context, k int) (int, error) { return k, nil }),
		query.WithName("square"),
		query.WithMetricsProvider(collector),
	)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, 1)
	require.NoError(t, err)
	_, err = store.Get(ctx, 1)
	require.NoError(t, err)
	store.InvalidateExact(1)
	store.Remove(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Lookups.WithLabelValues("square", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Lookups.WithLabelValues("square", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Fetches.WithLabelValues("square")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Settlements.WithLabelValues("square", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Invalidations.WithLabelValues("square")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.Evictions.WithLabelValues("square")))
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg, "test")
	assert.Panics(t, func() { metrics.New(reg, "test") })
}
