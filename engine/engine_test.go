package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/krisalay/query-cache/expiration"
	"github.com/krisalay/query-cache/types"
)

func TestIsStale(t *testing.T) {
	now := time.Now()
	e := NewCacheEngine(expiration.ForStaleTime(time.Minute), 0, 0, nil, nil, nil)

	assert.True(t, e.IsStale(types.StatusEmpty, time.Time{}, false, now))
	assert.False(t, e.IsStale(types.StatusLoading, time.Time{}, true, now))
	assert.False(t, e.IsStale(types.StatusSettled, now, false, now))
	assert.True(t, e.IsStale(types.StatusSettled, now, true, now))
	assert.True(t, e.IsStale(types.StatusSettled, now.Add(-2*time.Minute), false, now))
}

func TestNewCacheEngineDefaults(t *testing.T) {
	e := NewCacheEngine(nil, 0, 0, nil, nil, nil)

	assert.Equal(t, expiration.Never{}, e.Expiration)
	assert.NotNil(t, e.Scheduler)
	assert.Equal(t, types.NoopMetrics{}, e.Metrics)
	assert.NotNil(t, e.Logger)
	assert.False(t, e.Cleans())

	e.Scheduler.Close()
}
