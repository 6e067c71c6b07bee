package expiration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestForStaleTime(t *testing.T) {
	now := time.Now()

	never := ForStaleTime(0)
	assert.Equal(t, Never{}, never)
	assert.False(t, never.IsStale(now.Add(-24*time.Hour), now))

	after := ForStaleTime(time.Minute)
	assert.False(t, after.IsStale(now.Add(-30*time.Second), now))
	assert.True(t, after.IsStale(now.Add(-time.Minute), now))
}
