package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sink struct {
	mu  sync.Mutex
	got []string
}

func (s *sink) add(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, v)
}

func (s *sink) values() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestPublishInRegistrationOrder(t *testing.T) {
	b := NewBroadcaster[int](nil)
	out := &sink{}

	for _, name := range []string{"a", "b", "c"} {
		b.Subscribe(func(v int) { out.add(name) })
	}
	b.Publish(1)

	assert.Equal(t, []string{"a", "b", "c"}, out.values())
	assert.Equal(t, 3, b.Len())
}

func TestEnqueueSnapshotsSubscribers(t *testing.T) {
	b := NewBroadcaster[string](nil)
	early, late := &sink{}, &sink{}

	b.Subscribe(early.add)
	b.Enqueue("first")
	b.Subscribe(late.add)
	b.Enqueue("second")
	b.Flush()

	assert.Equal(t, []string{"first", "second"}, early.values())
	assert.Equal(t, []string{"second"}, late.values())
}

func TestUnsubscribeSkipsQueuedDeliveries(t *testing.T) {
	b := NewBroadcaster[string](nil)
	out := &sink{}

	s := b.Subscribe(out.add)
	b.Enqueue("dropped")
	require.True(t, b.Unsubscribe(s))
	require.False(t, b.Unsubscribe(s))
	b.Flush()

	assert.Empty(t, out.values())
	assert.False(t, s.Active())
	assert.Equal(t, 0, b.Len())
}

func TestDetachKeepsQueuedDeliveries(t *testing.T) {
	b := NewBroadcaster[string](nil)
	out := &sink{}

	s := b.Subscribe(out.add)
	b.Enqueue("last")
	assert.Equal(t, 1, b.Detach())
	b.Enqueue("never")
	b.Flush()

	assert.Equal(t, []string{"last"}, out.values())
	assert.False(t, s.Active())
	assert.False(t, b.Unsubscribe(s))
	assert.False(t, s.Active())
}

func TestReentrantPublishKeepsOrder(t *testing.T) {
	b := NewBroadcaster[int](nil)
	out := &sink{}

	b.Subscribe(func(v int) {
		out.add(string(rune('0' + v)))
		if v < 3 {
			// delivered after the current call returns, not nested inside it
			b.Publish(v + 1)
			out.add("after")
		}
	})
	b.Publish(1)

	assert.Equal(t, []string{"1", "after", "2", "after", "3"}, out.values())
}

func TestListenerPanicIsRecovered(t *testing.T) {
	var panicked []string
	b := NewBroadcaster[int](func(id string, r any) {
		panicked = append(panicked, id)
	})
	out := &sink{}

	bad := b.Subscribe(func(int) { panic("boom") })
	b.Subscribe(func(int) { out.add("ok") })
	b.Publish(1)

	assert.Equal(t, []string{bad.ID()}, panicked)
	assert.Equal(t, []string{"ok"}, out.values())
}

func TestSubscriberIDsAreUnique(t *testing.T) {
	b := NewBroadcaster[int](nil)
	a := b.Subscribe(func(int) {})
	c := b.Subscribe(func(int) {})
	assert.NotEqual(t, a.ID(), c.ID())
}
