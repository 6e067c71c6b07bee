package eviction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func all(int) bool { return true }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	p, err := New[int](LRU)
	require.NoError(t, err)

	p.OnPut(1)
	p.OnPut(2)
	p.OnPut(3)
	p.OnGet(1)

	k, ok := p.Evict(all)
	require.True(t, ok)
	assert.Equal(t, 2, k)

	k, ok = p.Evict(all)
	require.True(t, ok)
	assert.Equal(t, 3, k)
}

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	p, err := New[int](LFU)
	require.NoError(t, err)

	p.OnPut(1)
	p.OnPut(2)
	p.OnPut(3)
	p.OnGet(1)
	p.OnGet(1)
	p.OnGet(3)

	k, ok := p.Evict(all)
	require.True(t, ok)
	assert.Equal(t, 2, k)

	// 1 and 3 differ in frequency, 3 goes first
	k, ok = p.Evict(all)
	require.True(t, ok)
	assert.Equal(t, 3, k)
}

func TestLFUBreaksTiesByAge(t *testing.T) {
	p, err := New[string](LFU)
	require.NoError(t, err)

	p.OnPut("old")
	p.OnPut("new")

	k, ok := p.Evict(func(string) bool { return true })
	require.True(t, ok)
	assert.Equal(t, "old", k)
}

func TestFIFOIgnoresAccess(t *testing.T) {
	p, err := New[int](FIFO)
	require.NoError(t, err)

	p.OnPut(1)
	p.OnPut(2)
	p.OnGet(1)

	k, ok := p.Evict(all)
	require.True(t, ok)
	assert.Equal(t, 1, k)
}

func TestEvictSkipsIneligibleKeys(t *testing.T) {
	for _, pt := range []PolicyType{LRU, LFU, FIFO} {
		t.Run(string(pt), func(t *testing.T) {
			p, err := New[int](pt)
			require.NoError(t, err)

			p.OnPut(1)
			p.OnPut(2)

			pinned := func(k int) bool { return k != 1 }
			k, ok := p.Evict(pinned)
			require.True(t, ok)
			assert.Equal(t, 2, k)

			_, ok = p.Evict(pinned)
			assert.False(t, ok)

			p.Remove(1)
			_, ok = p.Evict(all)
			assert.False(t, ok)
		})
	}
}

func TestPolicyTypeValidate(t *testing.T) {
	assert.NoError(t, LRU.Validate())
	assert.ErrorIs(t, PolicyType("MRU").Validate(), ErrUnknownPolicy)

	_, err := New[int]("MRU")
	assert.ErrorIs(t, err, ErrUnknownPolicy)
}
