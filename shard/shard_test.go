package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/query-cache/eviction"
)

func TestCOWStoreSnapshotIsolation(t *testing.T) {
	s := NewCOWStore[string, int]()
	s.Put("a", 1)
	s.Put("b", 2)

	var seen []string
	s.Range(func(k string, _ int) bool {
		// writes during Range do not affect the snapshot being iterated
		s.Put(k+k, 0)
		seen = append(seen, k)
		return true
	})
	assert.ElementsMatch(t, []string{"a", "b"}, seen)
	assert.Equal(t, int64(4), s.Size())

	s.Delete("a")
	s.Delete("missing")
	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(3), s.Size())
}

func TestShardFull(t *testing.T) {
	policy, err := eviction.New[int](eviction.LRU)
	require.NoError(t, err)

	sh := NewShard[int, string](1, policy)
	assert.False(t, sh.Full())
	sh.Store.Put(1, "x")
	assert.True(t, sh.Full())

	unbounded := NewShard[int, string](0, nil)
	unbounded.Store.Put(1, "x")
	assert.False(t, unbounded.Full())
	unbounded.Touch(1)
}

func TestHashSelectorIsStable(t *testing.T) {
	type key struct {
		capability string
		id         int
	}
	sel := NewHashSelector[key]()

	k := key{capability: "users", id: 42}
	first := sel.Select(k, 16)
	assert.GreaterOrEqual(t, first, 0)
	assert.Less(t, first, 16)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, sel.Select(k, 16))
	}
	assert.Equal(t, 0, sel.Select(k, 1))
}
